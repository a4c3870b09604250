// Package report renders a printable complaint receipt: the key fields of a
// complaint plus a QR code that opens its public status page.
package report

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/BerylCAtieno/unitydesk-api/internal/refid"
)

const (
	qrImageName = "status-qr"
	qrSize      = 256
	dateLayout  = "02 Jan 2006, 15:04 MST"
	utf8Family  = "reportsans"
)

type Data struct {
	ReferenceID string
	Summary     string
	Department  string
	Priority    string
	Status      string
	IssueType   string
	Location    string
	CreatedAt   time.Time
}

// Generator renders reports. Without a loaded UTF-8 font it uses the core
// Helvetica font, which only covers Windows-1252; Devanagari text needs
// LoadUTF8Font.
type Generator struct {
	publicBaseURL string
	utf8Font      []byte
}

func NewGenerator(publicBaseURL string) *Generator {
	return &Generator{publicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

// LoadUTF8Font reads a TrueType font used for every report afterwards.
func (g *Generator) LoadUTF8Font(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read report font: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("report font %s is empty", path)
	}
	g.utf8Font = data
	return nil
}

// FileName is the download name for a complaint's report.
func FileName(referenceID string) string {
	return fmt.Sprintf("complaint-%s.pdf", refid.Normalize(referenceID))
}

// StatusURL is the link encoded in the report's QR code.
func (g *Generator) StatusURL(referenceID string) string {
	return g.publicBaseURL + "/status?ref=" + url.QueryEscape(refid.Normalize(referenceID))
}

// Generate returns the PDF bytes and the file name to serve them under.
func (g *Generator) Generate(data Data) ([]byte, string, error) {
	code := refid.Normalize(data.ReferenceID)
	if code == "" {
		return nil, "", fmt.Errorf("reference ID is required")
	}

	qr, err := qrcode.Encode(g.StatusURL(code), qrcode.Medium, qrSize)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode QR code: %w", err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Complaint "+refid.Format(code), true)
	pdf.SetAuthor("UnityDesk", true)
	family, tr := g.fonts(pdf)

	pdf.AddPage()
	pdf.SetFont(family, "B", 20)
	pdf.CellFormat(0, 12, "Civic Complaint Report", "", 1, "C", false, 0, "")
	pdf.SetFont(family, "", 11)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(0, 6, "Keep this receipt to track your complaint.", "", 1, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(6)

	pdf.SetFont(family, "B", 16)
	pdf.CellFormat(0, 10, "Reference ID: "+refid.Format(code), "1", 1, "C", false, 0, "")
	pdf.Ln(4)

	createdAt := data.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	rows := [][2]string{
		{"Department", data.Department},
		{"Issue type", data.IssueType},
		{"Priority", strings.ToUpper(data.Priority)},
		{"Status", statusLabel(data.Status)},
		{"Location", data.Location},
		{"Submitted", createdAt.Format(dateLayout)},
	}
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		pdf.SetFont(family, "B", 11)
		pdf.CellFormat(40, 8, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont(family, "", 11)
		pdf.MultiCell(0, 8, tr(row[1]), "", "L", false)
	}

	pdf.Ln(4)
	pdf.SetFont(family, "B", 12)
	pdf.CellFormat(0, 8, "Summary", "", 1, "L", false, 0, "")
	pdf.SetFont(family, "", 11)
	pdf.MultiCell(0, 6, tr(data.Summary), "", "L", false)

	pdf.Ln(8)
	pdf.RegisterImageOptionsReader(qrImageName, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(qr))
	x := (210 - 45) / 2.0
	pdf.ImageOptions(qrImageName, x, pdf.GetY(), 45, 45, true, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	pdf.SetFont(family, "", 9)
	pdf.CellFormat(0, 6, "Scan to check status: "+g.StatusURL(code), "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", fmt.Errorf("failed to render PDF: %w", err)
	}

	return buf.Bytes(), FileName(code), nil
}

// fonts registers the UTF-8 font when one is loaded and returns the family to
// use with its text translator.
func (g *Generator) fonts(pdf *fpdf.Fpdf) (string, func(string) string) {
	if len(g.utf8Font) == 0 {
		return "Helvetica", pdf.UnicodeTranslatorFromDescriptor("")
	}
	pdf.AddUTF8FontFromBytes(utf8Family, "", g.utf8Font)
	pdf.AddUTF8FontFromBytes(utf8Family, "B", g.utf8Font)
	return utf8Family, func(s string) string { return s }
}

func statusLabel(status string) string {
	if status == "" {
		return "Pending"
	}
	s := strings.ReplaceAll(status, "_", " ")
	return strings.ToUpper(s[:1]) + s[1:]
}
