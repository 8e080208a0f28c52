package i18n

import (
	"context"
	"slices"
	"testing"

	"github.com/pavelanni/mocktest/internal/gate"
	"github.com/pavelanni/mocktest/internal/review"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(DefaultLanguage); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return WithLanguage(context.Background(), lang)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "CatalogTitle"); got != "Mock Tests" {
		t.Errorf("T(CatalogTitle) = %q, want 'Mock Tests'", got)
	}
	if got := T(ctx, "TabSubject"); got != "Subject-wise" {
		t.Errorf("T(TabSubject) = %q, want 'Subject-wise'", got)
	}
}

func TestTranslateHindi(t *testing.T) {
	ctx := initLang(t, "hi")

	if got := T(ctx, "VerdictExcellent"); got != "उत्कृष्ट" {
		t.Errorf("T(VerdictExcellent) = %q, want 'उत्कृष्ट'", got)
	}
	got := Td(ctx, "RuleDuration", map[string]any{"Minutes": 20})
	if got != "टेस्ट की अवधि 20 मिनट है।" {
		t.Errorf("Td(RuleDuration) = %q", got)
	}
}

func TestUnknownLanguageFallsBack(t *testing.T) {
	ctx := initLang(t, "fr")

	if got := T(ctx, "PreviewTitle"); got != "Result Preview" {
		t.Errorf("T(PreviewTitle) = %q, want English fallback", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "TestsCount", 1); got != "1 test available." {
		t.Errorf("Tp(TestsCount, 1) = %q, want '1 test available.'", got)
	}
	if got := Tp(ctx, "TestsCount", 5); got != "5 tests available." {
		t.Errorf("Tp(TestsCount, 5) = %q, want '5 tests available.'", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "RulePenalty", map[string]any{"Penalty": "0.25"})
	want := "Each correct answer earns 1 mark. 0.25 marks are deducted for each wrong answer."
	if got != want {
		t.Errorf("Td(RulePenalty) = %q, want %q", got, want)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestContextWithoutLocalizer(t *testing.T) {
	if got := T(context.Background(), "VerdictGood"); got != "Good" {
		t.Errorf("T without localizer = %q, want 'Good'", got)
	}
}

func TestLanguages(t *testing.T) {
	got := Languages()
	if !slices.Equal(got, []string{"en", "hi"}) {
		t.Errorf("Languages() = %v", got)
	}
}

func TestRuleAndVerdictMessagesExist(t *testing.T) {
	for _, lang := range Languages() {
		ctx := initLang(t, lang)
		ids := append([]string(nil), gate.RuleIDs...)
		for _, v := range []review.Verdict{review.VerdictExcellent, review.VerdictGood, review.VerdictNeedsImprovement} {
			ids = append(ids, v.MessageID())
		}
		for _, id := range ids {
			if got := Td(ctx, id, map[string]any{"Minutes": 1, "Penalty": "0.25"}); got == id {
				t.Errorf("%s: message %s is missing", lang, id)
			}
		}
	}
}
