package rules

import "testing"

func TestExtractRefundInfo_Full(t *testing.T) {
	section := `Article 7 - Remboursement des frais de participation
La demande est à envoyer à : TF1 - Service Remboursement Jeux TV, 1 quai du Point du Jour, 92656 Boulogne-Billancourt Cedex dans un délai de 30 jours.
Joindre une facture détaillée, un relevé d'identité bancaire (RIB) et une demande écrite.`

	info := ExtractRefundInfo(section, true)

	if !info.IsRefundable {
		t.Fatal("expected refundable")
	}
	if info.DeadlineDays != 30 {
		t.Errorf("DeadlineDays = %d, want 30", info.DeadlineDays)
	}
	if info.Address == "" {
		t.Error("expected an address to be extracted")
	}
	if info.RawMatchedText != section {
		t.Error("RawMatchedText should carry the full section")
	}

	want := []string{DocItemizedBill, DocBankDetails, DocWrittenRequest}
	if len(info.RequiredDocuments) != len(want) {
		t.Fatalf("RequiredDocuments = %v, want %v", info.RequiredDocuments, want)
	}
	for i := range want {
		if info.RequiredDocuments[i] != want[i] {
			t.Errorf("RequiredDocuments[%d] = %q, want %q", i, info.RequiredDocuments[i], want[i])
		}
	}
}

func TestExtractRefundInfo_DefaultDeadline(t *testing.T) {
	section := `Article 7 - Remboursement
Le remboursement des frais s'effectue sur simple demande écrite.`

	info := ExtractRefundInfo(section, true)
	if info.DeadlineDays != DefaultDeadlineDays {
		t.Errorf("DeadlineDays = %d, want default %d", info.DeadlineDays, DefaultDeadlineDays)
	}
}

func TestExtractRefundInfo_NotFound(t *testing.T) {
	info := ExtractRefundInfo("", false)

	if info.IsRefundable {
		t.Error("not-found must yield non-refundable")
	}
	if info.DeadlineDays != 0 || info.Address != "" || len(info.RequiredDocuments) != 0 {
		t.Errorf("non-refundable result must be zero-valued, got %+v", info)
	}
}

func TestRequiredDocuments_FixedOrder(t *testing.T) {
	// Source text mentions the documents in reverse order; output order
	// stays canonical.
	section := "Joindre une demande écrite, le RIB puis la facture détaillée pour obtenir le remboursement des frais."
	docs := requiredDocuments(section)

	want := []string{DocItemizedBill, DocBankDetails, DocWrittenRequest}
	if len(docs) != 3 {
		t.Fatalf("got %v", docs)
	}
	for i := range want {
		if docs[i] != want[i] {
			t.Errorf("docs[%d] = %q, want %q", i, docs[i], want[i])
		}
	}
}
