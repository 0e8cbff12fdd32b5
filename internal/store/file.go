package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lucasfdcampos/gastro-leads/internal/domain"
)

// ConsolidatedName is the base file name of the accumulating store.
const ConsolidatedName = "base_datos_gastronomica_consolidada"

// utf8BOM lets spreadsheet apps detect UTF-8.
const utf8BOM = "\xEF\xBB\xBF"

// Columns is the CSV header, in order.
var Columns = []string{
	"title", "category", "phone", "address", "city", "postal_code", "country",
	"latitude", "longitude", "rating", "review_count", "url", "domain",
	"external_id", "secondary_id", "is_verified", "emails", "whatsapp",
	"has_own_website", "is_chain", "extracted_at",
}

var requiredColumns = []string{"title", "external_id"}

// FileStore keeps the record set in a CSV file and a JSON mirror.
type FileStore struct {
	CSVPath  string
	JSONPath string

	deriver Deriver
}

// NewFileStore returns a store at dir/name.csv + dir/name.json. d may be nil.
func NewFileStore(dir, name string, d Deriver) *FileStore {
	return &FileStore{
		CSVPath:  filepath.Join(dir, name+".csv"),
		JSONPath: filepath.Join(dir, name+".json"),
		deriver:  d,
	}
}

// SnapshotName returns the base name for a one-shot snapshot output.
func SnapshotName(at time.Time) string {
	return "emails_extraidos_" + at.Format("20060102_150405")
}

// Paths returns the files written by Save.
func (s *FileStore) Paths() []string { return []string{s.CSVPath, s.JSONPath} }

// ─── Load ─────────────────────────────────────────────────────────────────────

// Load reads the CSV. A missing file is an empty store; an unreadable one
// returns an error wrapping ErrCorrupt.
func (s *FileStore) Load(_ context.Context) ([]domain.BusinessRecord, error) {
	data, err := os.ReadFile(s.CSVPath)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.BusinessRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", s.CSVPath, err)
	}

	recs, err := parseCSV(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.CSVPath, err)
	}
	derive(s.deriver, recs)
	return recs, nil
}

func parseCSV(data []byte) ([]domain.BusinessRecord, error) {
	data = bytes.TrimPrefix(data, []byte(utf8BOM))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty file")
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := index[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}

	recs := make([]domain.BusinessRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		get := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(row) {
				return ""
			}
			return cell(row[i])
		}
		recs = append(recs, domain.BusinessRecord{
			Title:       get("title"),
			Category:    get("category"),
			Phone:       get("phone"),
			Address:     get("address"),
			City:        get("city"),
			PostalCode:  get("postal_code"),
			Country:     get("country"),
			Latitude:    parseFloat(get("latitude")),
			Longitude:   parseFloat(get("longitude")),
			Rating:      parseRating(get("rating")),
			ReviewCount: parseCount(get("review_count")),
			URL:         get("url"),
			Domain:      get("domain"),
			ExternalID:  get("external_id"),
			SecondaryID: get("secondary_id"),
			IsVerified:  parseBool(get("is_verified")),
			Emails:      domain.ParseEmailList(get("emails")),
			WhatsApp:    get("whatsapp"),
			ExtractedAt: parseTime(get("extracted_at")),
		})
	}
	return recs, nil
}

// ─── Save ─────────────────────────────────────────────────────────────────────

// Save writes both files to temporaries in the target directory, then renames
// them into place. Any failure leaves the previous files untouched unless the
// CSV rename already happened, which is reported as an error all the same.
func (s *FileStore) Save(_ context.Context, recs []domain.BusinessRecord) (domain.Stats, error) {
	dir := filepath.Dir(s.CSVPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.Stats{}, fmt.Errorf("store: mkdir %s: %w", dir, err)
	}

	csvTmp, err := writeTemp(dir, filepath.Base(s.CSVPath), func(f *os.File) error { return writeCSV(f, recs) })
	if err != nil {
		return domain.Stats{}, fmt.Errorf("store: write csv: %w", err)
	}
	jsonTmp, err := writeTemp(filepath.Dir(s.JSONPath), filepath.Base(s.JSONPath), func(f *os.File) error { return writeJSON(f, recs) })
	if err != nil {
		os.Remove(csvTmp)
		return domain.Stats{}, fmt.Errorf("store: write json: %w", err)
	}

	if err := os.Rename(csvTmp, s.CSVPath); err != nil {
		os.Remove(csvTmp)
		os.Remove(jsonTmp)
		return domain.Stats{}, fmt.Errorf("store: rename csv: %w", err)
	}
	if err := os.Rename(jsonTmp, s.JSONPath); err != nil {
		os.Remove(jsonTmp)
		return domain.Stats{}, fmt.Errorf("store: rename json (csv already replaced, rerun required): %w", err)
	}

	stats := ComputeStats(recs)
	LogStats(s.CSVPath, stats, recs)
	return stats, nil
}

func writeTemp(dir, base string, write func(*os.File) error) (string, error) {
	f, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return "", err
	}
	name := f.Name()
	if err := write(f); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}

func writeCSV(f *os.File, recs []domain.BusinessRecord) error {
	if _, err := f.WriteString(utf8BOM); err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(Columns); err != nil {
		return err
	}
	for _, r := range recs {
		row := []string{
			r.Title,
			r.Category,
			r.Phone,
			r.Address,
			r.City,
			r.PostalCode,
			r.Country,
			formatFloat(r.Latitude),
			formatFloat(r.Longitude),
			formatFloat(r.Rating),
			strconv.Itoa(r.ReviewCount),
			r.URL,
			r.Domain,
			r.ExternalID,
			r.SecondaryID,
			strconv.FormatBool(r.IsVerified),
			r.Emails.String(),
			r.WhatsApp,
			strconv.FormatBool(r.HasOwnWebsite),
			strconv.FormatBool(r.IsChain),
			formatTime(r.ExtractedAt),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeJSON(f *os.File, recs []domain.BusinessRecord) error {
	if recs == nil {
		recs = []domain.BusinessRecord{}
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}

// ─── Cells ────────────────────────────────────────────────────────────────────

// cell trims a raw value and maps the null spellings left by spreadsheet and
// dataframe exports to "".
func cell(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "nan", "none", "null":
		return ""
	}
	return s
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseRating(s string) *float64 {
	v := parseFloat(s)
	if v == nil || *v < 0 || *v > 5 {
		return nil
	}
	return v
}

// parseCount accepts "12" and the "12.0" float spelling.
func parseCount(s string) int {
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return max(n, 0)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return int(f)
	}
	return 0
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}
