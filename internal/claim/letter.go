package claim

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"tvgamerefund/internal/models"
	"tvgamerefund/internal/rules"
)

const (
	pageW   = 210.0
	marginL = 25.0
	marginR = 25.0
	bodyW   = pageW - marginL - marginR
)

var frenchMonths = [...]string{
	"janvier", "fevrier", "mars", "avril", "mai", "juin",
	"juillet", "aout", "septembre", "octobre", "novembre", "decembre",
}

// The core fonts in gofpdf only cover cp1252; anything outside it must
// be mapped to an ASCII fallback before rendering.
func transliterate(s string) string {
	replacer := strings.NewReplacer(
		"œ", "oe", "Œ", "OE",
		"≤", "<=", "≥", ">=",
		"–", "-", "—", "-",
		"‘", "'", "’", "'",
		"“", "\"", "”", "\"",
	)
	return replacer.Replace(s)
}

func frenchDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), frenchMonths[t.Month()-1], t.Year())
}

// playedAtDisplay renders the participation date the client supplied,
// spelled out when it parses as ISO, verbatim otherwise.
func playedAtDisplay(s string) string {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return frenchDate(t)
	}
	return s
}

// BuildLetter renders a formal refund-request letter as a PDF. The
// recipient is the refund address from the game rules; enclosures follow
// the document list the rules require.
func BuildLetter(req models.ClaimRequest, info models.RefundInfo) ([]byte, error) {
	if req.ClaimantName == "" {
		return nil, fmt.Errorf("claim: claimant name is required")
	}
	if req.RefundAddress == "" {
		return nil, fmt.Errorf("claim: refund address is required")
	}

	docs := info.RequiredDocuments
	if len(docs) == 0 {
		docs = []string{rules.DocItemizedBill, rules.DocBankDetails, rules.DocWrittenRequest}
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(marginL, 25, marginR)
	pdf.SetAutoPageBreak(true, 25)
	pdf.AddPage()

	// Sender block, top left.
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(30, 30, 30)
	pdf.MultiCell(bodyW/2, 5, transliterate(req.ClaimantName+"\n"+req.ClaimantAddress), "", "L", false)
	if req.PhoneNumber != "" {
		pdf.MultiCell(bodyW/2, 5, transliterate("Ligne : "+req.PhoneNumber), "", "L", false)
	}
	pdf.Ln(6)

	// Recipient block, indented right.
	pdf.SetX(marginL + bodyW/2)
	recipY := pdf.GetY()
	pdf.MultiCell(bodyW/2, 5, transliterate(req.RefundAddress), "", "L", false)
	if pdf.GetY() < recipY+15 {
		pdf.SetY(recipY + 15)
	}
	pdf.Ln(4)

	// Date line.
	pdf.SetX(marginL + bodyW/2)
	pdf.CellFormat(bodyW/2, 5, transliterate("Le "+frenchDate(time.Now())), "", 1, "L", false, 0, "")
	pdf.Ln(8)

	// Object line.
	pdf.SetFont("Helvetica", "B", 10)
	object := "Objet : demande de remboursement des frais de participation"
	if req.GameTitle != "" {
		object += " - " + req.GameTitle
	}
	pdf.MultiCell(bodyW, 5, transliterate(object), "", "L", false)
	pdf.Ln(6)

	// Body.
	pdf.SetFont("Helvetica", "", 10)
	body := "Madame, Monsieur,\n\n" +
		"Conformement au reglement du jeu"
	if req.GameTitle != "" {
		body += " \"" + req.GameTitle + "\""
	}
	if req.Channel != "" {
		body += " diffuse sur " + strings.ToUpper(req.Channel)
	}
	body += ", je vous demande le remboursement des frais engages pour ma participation"
	if req.PlayedAt != "" {
		body += " du " + playedAtDisplay(req.PlayedAt)
	}
	if req.Cost > 0 {
		body += fmt.Sprintf(", d'un montant de %.2f EUR", req.Cost)
	}
	body += ".\n\nVous trouverez ci-joint les pieces demandees par le reglement. " +
		"Je vous remercie de bien vouloir effectuer le remboursement sur le compte " +
		"dont les coordonnees figurent sur le RIB joint."
	if req.IBAN != "" {
		body += "\n\nIBAN : " + req.IBAN
	}
	body += "\n\nJe vous prie d'agreer, Madame, Monsieur, l'expression de mes salutations distinguees."
	pdf.MultiCell(bodyW, 5.5, transliterate(body), "", "L", false)
	pdf.Ln(8)

	// Signature.
	pdf.SetX(marginL + bodyW/2)
	pdf.CellFormat(bodyW/2, 5, transliterate(req.ClaimantName), "", 1, "L", false, 0, "")
	pdf.Ln(8)

	// Enclosures.
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(bodyW, 5, transliterate("Pieces jointes :"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	for _, d := range docs {
		pdf.CellFormat(bodyW, 5, transliterate("- "+d), "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("claim: pdf output: %w", err)
	}
	return buf.Bytes(), nil
}
