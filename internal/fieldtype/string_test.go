package fieldtype

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringValidate(t *testing.T) {
	r := NewDefaultRegistry()

	// 300 символов при дефолтном лимите 255
	long := strings.Repeat("x", 300)
	errs := r.ValidateValue("string", long, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "maximum length")

	// кастомный лимит
	errs = r.ValidateValue("string", long, Settings{"max_length": 500})
	assert.Empty(t, errs)

	// required + пусто
	errs = r.ValidateValue("string", "   ", Settings{"required": true})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "required")

	// обычное значение проходит
	assert.Empty(t, r.ValidateValue("string", "ok", Settings{"required": true}))
}

func TestStringProcess(t *testing.T) {
	r := NewDefaultRegistry()

	assert.Equal(t, "test value", r.ProcessValue("string", "  test value  ", nil))

	// пусто + default_value
	assert.Equal(t, "default text",
		r.ProcessValue("string", "", Settings{"default_value": "default text"}))
	assert.Equal(t, "default text",
		r.ProcessValue("string", "   ", Settings{"default_value": "default text"}))

	// пусто без дефолта остаётся пустым
	assert.Equal(t, "", r.ProcessValue("string", "", nil))

	// усечение по рунам, не по байтам
	got := r.ProcessValue("string", strings.Repeat("я", 10), Settings{"max_length": 4})
	assert.Equal(t, "яяяя", got)
}

func TestStringFormat(t *testing.T) {
	p := &StringPlugin{}

	assert.Equal(t, "hello world",
		p.Format("<b>hello</b> world", nil, "plain"))

	assert.Equal(t, "abcde...",
		p.Format("abcdefgh", Settings{"display_length": 5}, "truncated"))
	assert.Equal(t, "short",
		p.Format("short", Settings{"display_length": 5}, "truncated"))

	assert.Equal(t, "<b>raw</b>", p.Format("<b>raw</b>", nil, "default"))
}

func TestStringSettingsForm(t *testing.T) {
	p := &StringPlugin{}

	form := p.SettingsForm(Settings{"max_length": 100}, "field")
	require.Len(t, form, 3)
	assert.Equal(t, "max_length", form[0].Name)
	assert.Equal(t, 100, form[0].Default)
}
