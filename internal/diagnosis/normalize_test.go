package diagnosis

import (
	"errors"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

func TestNormalize_Example(t *testing.T) {
	raw := `{"name":"Tomato","status":"UNHEALTHY ","confidence":"85","problem":"p","cause":"c","treatment":"t","prevention":"v"}`

	got, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	want := Record{
		Name:       "Tomato",
		Status:     StatusUnhealthy,
		Confidence: 85,
		Problem:    "p",
		Cause:      "c",
		Treatment:  "t",
		Prevention: "v",
	}
	if got != want {
		t.Errorf("Normalize() = %+v, want %+v", got, want)
	}
}

func TestNormalize_Confidence(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{`150`, 100},
		{`-5`, 0},
		{`42`, 42},
		{`72.6`, 73},
		{`"85"`, 85},
		{`" 90% "`, 90},
		{`"high"`, 0},
		{`true`, 0},
		{`null`, 0},
		{`{"v":1}`, 0},
		{`"NaN"`, 0},
		{`1e300`, 100},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			rec, err := Normalize(`{"confidence":` + tt.raw + `}`)
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if rec.Confidence != tt.want {
				t.Errorf("confidence = %d, want %d", rec.Confidence, tt.want)
			}
		})
	}
}

func TestNormalize_Status(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
	}{
		{`"healthy"`, StatusHealthy},
		{`"  Diseased"`, StatusDiseased},
		{`"Pest Infested"`, StatusPestInfested},
		{`"nutrient-deficient"`, StatusNutrientDeficient},
		{`"STRESSED"`, StatusStressed},
		{`"purple"`, StatusUnknown},
		{`""`, StatusUnknown},
		{`3`, StatusUnknown},
		{`null`, StatusUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			rec, err := Normalize(`{"status":` + tt.raw + `}`)
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if rec.Status != tt.want {
				t.Errorf("status = %q, want %q", rec.Status, tt.want)
			}
		})
	}
}

func TestNormalize_MissingAndMistypedFields(t *testing.T) {
	rec, err := Normalize(`{"name": 12, "problem": ["a"], "cause": "  root rot  "}`)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := Record{Status: StatusUnknown, Cause: "root rot"}
	if rec != want {
		t.Errorf("Normalize() = %+v, want %+v", rec, want)
	}
}

func TestNormalize_CodeFence(t *testing.T) {
	raw := "```json\n{\"name\":\"Fern\",\"status\":\"healthy\",\"confidence\":90}\n```"
	rec, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if rec.Name != "Fern" || rec.Status != StatusHealthy || rec.Confidence != 90 {
		t.Errorf("Normalize() = %+v", rec)
	}
}

func TestNormalize_Malformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"   ",
		"The plant looks healthy.",
		`{"name": "Tomato"`,
		`["healthy"]`,
		`"healthy"`,
		"```\n```",
	} {
		_, err := Normalize(raw)
		if !errors.Is(err, ErrMalformedOutput) {
			t.Errorf("Normalize(%q) error = %v, want ErrMalformedOutput", raw, err)
		}
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	raw := `{"name":"Basil","status":"Stressed","confidence":"61.4"}`
	a, errA := Normalize(raw)
	b, errB := Normalize(raw)
	if errA != nil || errB != nil {
		t.Fatalf("errors: %v, %v", errA, errB)
	}
	if a != b {
		t.Errorf("results differ: %+v vs %+v", a, b)
	}
}

func TestNormalize_InvariantsHold(t *testing.T) {
	inputs := []string{
		`{}`,
		`{"status":"HEALTHY","confidence":-1000}`,
		`{"status":"dying","confidence":"99999"}`,
		`{"status":null,"confidence":false}`,
		`{"status":"pest_infested","confidence":"50%"}`,
	}
	for _, raw := range inputs {
		rec, err := Normalize(raw)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", raw, err)
		}
		if rec.Confidence < 0 || rec.Confidence > 100 {
			t.Errorf("Normalize(%q) confidence = %d out of range", raw, rec.Confidence)
		}
		if !rec.Status.Valid() {
			t.Errorf("Normalize(%q) status = %q not in enum", raw, rec.Status)
		}
	}
}

func TestNormalizeStatus_NonString(t *testing.T) {
	if got := NormalizeStatus(gjson.Parse(`42`)); got != StatusUnknown {
		t.Errorf("got %q, want unknown", got)
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("  leaves turning yellow ", "Monstera")

	if !strings.Contains(p, "The user has labeled this plant as: Monstera") {
		t.Error("prompt missing label")
	}
	if !strings.Contains(p, "Additional information from the user: leaves turning yellow") {
		t.Error("prompt missing additional info")
	}
	if !strings.HasSuffix(p, "Respond with ONLY the JSON object, no additional text.") {
		t.Error("prompt missing closing instruction")
	}
	for _, s := range Statuses {
		if !strings.Contains(p, string(s)) {
			t.Errorf("prompt does not list status %q", s)
		}
	}

	bare := BuildPrompt("", " ")
	if strings.Contains(bare, "labeled") || strings.Contains(bare, "Additional information") {
		t.Error("empty label/info should not be mentioned")
	}
}
