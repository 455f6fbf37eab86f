// Package report renders patches through text templates: a readable
// description, and a C header for hosts that embed the patch in native
// code.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"text/template"
	"unicode"

	"github.com/Masterminds/sprig"
	"github.com/panyard/steelpan"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates
var templates embed.FS

type Reporter struct {
	Template *template.Template
}

type (
	// PatchData is what the templates are executed with.
	PatchData struct {
		Patch      steelpan.Patch
		SampleRate int
		// Ident is the patch name as a C identifier.
		Ident    string
		Partials []PartialData
		// TopNote is the highest MIDI note whose partials are all below
		// Nyquist, or -1 if there is none.
		TopNote      int
		TopNoteName  string
		TopFrequency float64
	}

	PartialData struct {
		Index int
		steelpan.Partial
		// Level is the amplitude after normalization, as used by the synth.
		Level float64
		// Cents is the detuning from the nearest harmonic.
		Cents float64
	}
)

func funcs() template.FuncMap {
	f := sprig.TxtFuncMap()
	title := cases.Title(language.English)
	f["title"] = title.String
	f["ms"] = func(seconds float64) string {
		return fmt.Sprintf("%.4g ms", seconds*1000)
	}
	return f
}

// New returns a reporter using the built-in templates.
func New() (*Reporter, error) {
	tmpl, err := template.New("base").Funcs(funcs()).ParseFS(templates, "templates/*")
	if err != nil {
		return nil, fmt.Errorf("could not parse built-in templates: %w", err)
	}
	return &Reporter{Template: tmpl}, nil
}

// NewFromTemplates parses every file in templateDirectory instead of the
// built-in templates.
func NewFromTemplates(templateDirectory string) (*Reporter, error) {
	globPtrn := filepath.Join(templateDirectory, "*.*")
	tmpl, err := template.New("base").Funcs(funcs()).ParseGlob(globPtrn)
	if err != nil {
		return nil, fmt.Errorf(`could not create template based on directory "%v": %w`, templateDirectory, err)
	}
	return &Reporter{Template: tmpl}, nil
}

// Describe returns the readable description of the patch.
func (r *Reporter) Describe(patch steelpan.Patch, sampleRate int) (string, error) {
	return r.execute("patch.txt", patch, sampleRate)
}

// Header returns the patch as a C header.
func (r *Reporter) Header(patch steelpan.Patch, sampleRate int) (string, error) {
	return r.execute("patch.h", patch, sampleRate)
}

func (r *Reporter) execute(templateName string, patch steelpan.Patch, sampleRate int) (string, error) {
	if err := patch.Validate(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := r.Template.ExecuteTemplate(&buf, templateName, NewPatchData(patch, sampleRate)); err != nil {
		return "", fmt.Errorf(`could not execute template "%v": %w`, templateName, err)
	}
	return buf.String(), nil
}

func NewPatchData(patch steelpan.Patch, sampleRate int) PatchData {
	d := PatchData{Patch: patch, SampleRate: sampleRate, Ident: ident(patch.Name), TopNote: -1}
	total, maxRatio := 0.0, 0.0
	for _, p := range patch.Partials {
		total += p.Amplitude
		maxRatio = max(maxRatio, p.Ratio)
	}
	for i, p := range patch.Partials {
		pd := PartialData{Index: i, Partial: p}
		if total > 0 {
			pd.Level = p.Amplitude / total
		}
		harmonic := max(math.Round(p.Ratio), 1)
		pd.Cents = 1200 * math.Log2(p.Ratio/harmonic)
		d.Partials = append(d.Partials, pd)
	}
	nyquist := float64(sampleRate) / 2
	for n := 127; n >= 0 && maxRatio > 0; n-- {
		f := float64(steelpan.MIDINoteFrequency(byte(n)))
		if f*maxRatio < nyquist {
			d.TopNote, d.TopNoteName, d.TopFrequency = n, steelpan.NoteName(n), f
			break
		}
	}
	return d
}

func ident(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case b.Len() > 0 && !strings.HasSuffix(b.String(), "_"):
			b.WriteByte('_')
		}
	}
	s := strings.TrimSuffix(b.String(), "_")
	if s == "" || unicode.IsDigit(rune(s[0])) {
		s = "patch_" + s
		s = strings.TrimSuffix(s, "_")
	}
	return s
}
