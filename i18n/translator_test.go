package i18n

import "testing"

func TestTranslator_DefaultAndJapanese(t *testing.T) {
	data := map[string]string{"field": "productId", "schema": "BankingProduct", "data": "{}"}

	// default is en
	msg := T("MISSING_VALUE", data)
	if want := "Required field 'productId' in 'BankingProduct' has NULL value: {}"; msg != want {
		t.Fatalf("got %q, want %q", msg, want)
	}

	SetLanguage("ja")
	if msg := T("MISSING_VALUE", data); msg == "" || msg[0] == 'R' {
		t.Fatalf("expected japanese message, got %q", msg)
	}

	// reset to en
	SetLanguage("en")
}

func TestTranslator_UnknownKindFallsBackToKind(t *testing.T) {
	if msg := T("SOMETHING_ELSE", nil); msg != "SOMETHING_ELSE" {
		t.Fatalf("got %q", msg)
	}
}

type upper struct{}

func (upper) Message(kind string, _ map[string]string) string { return "X:" + kind }

func TestSetTranslator(t *testing.T) {
	SetTranslator(upper{})
	defer SetTranslator(nil)
	if msg := T("NO_MATCHING_MODEL", nil); msg != "X:NO_MATCHING_MODEL" {
		t.Fatalf("got %q", msg)
	}
}

func TestTranslator_MissingPropertyIsNotRequired(t *testing.T) {
	data := map[string]string{"field": "note", "schema": "Fee", "data": "{}"}
	if msg := T("MISSING_PROPERTY", data); msg != "Field 'note' is missing in Fee: {}" {
		t.Fatalf("got %q", msg)
	}
}
