package cwidget

import (
	"fmt"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/pkg/errors"
)

// Input is a labelled entry that only reports values its Validator accepts.
type Input[T any] struct {
	widget.BaseWidget

	labelWidget *widget.Label
	entryWidget *widget.Entry
	errorWidget *widget.Label

	LabelText   string
	Placeholder string

	DefaultValue T

	OnChanged func(T)

	Validator func(string) (T, error)
	Format    func(T) string
}

func newInput[T any](label, placeholder string, defaultValue T, format func(T) string) *Input[T] {
	input := &Input[T]{
		LabelText:    label,
		Placeholder:  placeholder,
		DefaultValue: defaultValue,
		Format:       format,
	}

	input.labelWidget = widget.NewLabel(input.title(defaultValue))
	input.labelWidget.TextStyle = fyne.TextStyle{Bold: true}

	input.entryWidget = widget.NewEntry()
	input.entryWidget.SetPlaceHolder(placeholder)

	input.errorWidget = widget.NewLabel("")
	input.errorWidget.Hidden = true
	input.errorWidget.TextStyle = fyne.TextStyle{Italic: true}
	input.errorWidget.Importance = widget.DangerImportance

	input.entryWidget.OnChanged = func(s string) {
		res, err := input.Validator(s)
		input.SetError(err)

		if err == nil {
			if input.OnChanged != nil {
				input.OnChanged(res)
			}
			input.labelWidget.SetText(input.title(res))
		}
	}

	input.ExtendBaseWidget(input)

	return input
}

// NewIntInput accepts integers no smaller than min. An empty entry means the
// default value.
func NewIntInput(label, placeholder string, defaultValue, min int, onChanged func(int)) *Input[int] {
	input := newInput(label, placeholder, defaultValue, strconv.Itoa)
	input.OnChanged = onChanged
	input.Validator = func(s string) (int, error) {
		return ParseInt(s, input.DefaultValue, min)
	}

	return input
}

// NewTextInput accepts any non-blank text.
func NewTextInput(label, placeholder, defaultValue string, onChanged func(string)) *Input[string] {
	input := newInput(label, placeholder, defaultValue, func(s string) string { return s })
	input.Validator = func(s string) (string, error) {
		s = strings.TrimSpace(s)
		if s == "" {
			return input.DefaultValue, errors.New("value is required")
		}
		return s, nil
	}
	input.entryWidget.SetText(defaultValue)
	input.OnChanged = onChanged

	return input
}

// ParseInt reads s as an integer of at least min, falling back to def for
// empty input.
func ParseInt(s string, def, min int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}

	res, err := strconv.Atoi(s)
	if err != nil {
		return def, errors.Errorf("%q is not a number", s)
	}

	if res < min {
		return def, errors.Errorf("must be at least %d", min)
	}

	return res, nil
}

func (item *Input[T]) title(v T) string {
	return fmt.Sprintf("%s: %s", item.LabelText, item.Format(v))
}

func (item *Input[T]) CreateRenderer() fyne.WidgetRenderer {
	c := container.NewVBox(
		item.labelWidget,
		item.entryWidget,
		item.errorWidget,
	)

	return widget.NewSimpleRenderer(c)
}

func (item *Input[T]) SetError(err error) {
	item.errorWidget.Hidden = err == nil
	if err != nil {
		item.errorWidget.SetText(err.Error())
	}
	item.errorWidget.Refresh()
}

func (item *Input[T]) SetText(text string) {
	item.entryWidget.SetText(text)
}
