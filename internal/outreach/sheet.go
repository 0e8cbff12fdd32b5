package outreach

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// SheetColumns is the header of the drafts CSV. The last six columns are
// left blank for whoever sends the messages to track replies.
var SheetColumns = []string{
	"nombre", "tipo", "telefono", "rating_actual", "reviews_count",
	"reviews_4_estrellas", "rating_potencial", "impacto_estimado",
	"top_topic_1", "top_topic_2", "top_topic_3", "mensaje",
	"url_gmb", "place_id", "address",
	"enviado", "respondio", "agendo_call", "hizo_call", "trial", "notas",
}

// SheetName returns the drafts file name for a neighborhood and time.
func SheetName(neighborhood string, at time.Time) string {
	return fmt.Sprintf("mensajes_%s_%s.csv", neighborhood, at.Format("20060102_150405"))
}

// WriteSheet writes drafts to dir and returns the file path.
func WriteSheet(dir, neighborhood string, drafts []Draft, at time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("outreach: mkdir: %w", err)
	}
	path := filepath.Join(dir, SheetName(neighborhood, at))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("outreach: create: %w", err)
	}
	defer f.Close()

	// BOM so spreadsheet apps open the accents correctly
	if _, err := f.WriteString("\uFEFF"); err != nil {
		return "", fmt.Errorf("outreach: write: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(SheetColumns); err != nil {
		return "", fmt.Errorf("outreach: write: %w", err)
	}
	for _, d := range drafts {
		row := []string{
			d.Name,
			d.Kind,
			d.Phone,
			strconv.FormatFloat(d.Rating, 'f', -1, 64),
			strconv.Itoa(d.Reviews),
			strconv.Itoa(d.FourStar),
			strconv.FormatFloat(round2(d.PotentialRating), 'f', -1, 64),
			fmt.Sprintf("+%d%%", d.Impact),
			topicCell(d.Topics, 0),
			topicCell(d.Topics, 1),
			topicCell(d.Topics, 2),
			d.Message,
			d.URL,
			d.PlaceID,
			d.Address,
			"false", "", "", "", "", "",
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("outreach: write: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("outreach: flush: %w", err)
	}
	return path, f.Close()
}

func topicCell(ts []Topic, i int) string {
	if i >= len(ts) {
		return ""
	}
	return ts[i].String()
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
