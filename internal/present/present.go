// Package present renders prediction results, run history and errors for a terminal.
package present

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/miradorstack/risk-client/internal/models"
	"github.com/miradorstack/risk-client/internal/normalizer"
	"github.com/miradorstack/risk-client/internal/utils"
)

// Text writes a human-readable prediction result.
func Text(w io.Writer, result models.PredictionResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Disease:\t%s\n", result.Disease)
	fmt.Fprintf(tw, "Predicted label:\t%s\n", result.PredictedLabel)
	if result.RequestID != "" {
		fmt.Fprintf(tw, "Request ID:\t%s\n", result.RequestID)
	}
	if result.RunID != "" {
		fmt.Fprintf(tw, "Run ID:\t%s\n", result.RunID)
	}
	fmt.Fprintf(tw, "Probabilities:\t%s\n", Probabilities(result.Probabilities))
	if err := tw.Flush(); err != nil {
		return err
	}

	if err := bulletList(w, "Suggested next steps", result.SuggestedNextSteps); err != nil {
		return err
	}
	return bulletList(w, "Notes", result.Notes)
}

// Probabilities formats a probability map as given, ordered by label.
func Probabilities(p map[string]float64) string {
	if len(p) == 0 {
		return "-"
	}
	labels := make([]string, 0, len(p))
	for label := range p {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		parts = append(parts, label+"="+strconv.FormatFloat(p[label], 'f', -1, 64))
	}
	return strings.Join(parts, " ")
}

func bulletList(w io.Writer, title string, items []string) error {
	if len(items) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "\n%s:\n", title); err != nil {
		return err
	}
	for _, item := range items {
		if _, err := fmt.Fprintf(w, "  - %s\n", item); err != nil {
			return err
		}
	}
	return nil
}

// History writes one row per run in the given order.
func History(w io.Writer, runs []models.RunSummary) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "no runs found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tCREATED\tDISEASE\tLABEL\tPROBABILITIES\tMODEL\tUSER")
	for _, run := range runs {
		user := "-"
		if run.UserID != nil {
			user = *run.UserID
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			run.RunID,
			utils.FormatServerTime(run.CreatedAt),
			run.Disease,
			run.PredictedLabel,
			Probabilities(run.Probabilities),
			dash(run.ModelVersion),
			user,
		)
	}
	return tw.Flush()
}

// RunDetail writes a stored run including its request payload.
func RunDetail(w io.Writer, detail models.RunDetail) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Run ID:\t%s\n", detail.RunID)
	fmt.Fprintf(tw, "Created:\t%s\n", utils.FormatServerTime(detail.CreatedAt))
	fmt.Fprintf(tw, "Disease:\t%s\n", detail.Disease)
	fmt.Fprintf(tw, "Predicted label:\t%s\n", detail.PredictedLabel)
	fmt.Fprintf(tw, "Probabilities:\t%s\n", Probabilities(detail.Probabilities))
	fmt.Fprintf(tw, "Model:\t%s\n", dash(detail.ModelVersion))
	if detail.UserID != nil {
		fmt.Fprintf(tw, "User:\t%s\n", *detail.UserID)
	}
	if detail.LatencyMS != nil {
		fmt.Fprintf(tw, "Latency:\t%s ms\n", strconv.FormatFloat(*detail.LatencyMS, 'f', 1, 64))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(detail.RequestPayload) == 0 || string(detail.RequestPayload) == "null" {
		return nil
	}

	var payload any
	if err := json.Unmarshal(detail.RequestPayload, &payload); err != nil {
		_, err = fmt.Fprintf(w, "\nRequest payload:\n%s\n", detail.RequestPayload)
		return err
	}
	if _, err := fmt.Fprintln(w, "\nRequest payload:"); err != nil {
		return err
	}
	return JSON(w, payload)
}

// Users writes the user listing.
func Users(w io.Writer, users []models.UserRecord) error {
	if len(users) == 0 {
		_, err := fmt.Fprintln(w, "no users found")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "USER ID\tCREATED")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\n", u.UserID, utils.FormatServerTime(u.CreatedAt))
	}
	return tw.Flush()
}

// Models writes the model listing.
func Models(w io.Writer, list []models.ModelInfo) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "no models loaded")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DISEASE\tCYCLE\tFEATURES\tPATH")
	for _, m := range list {
		features := "-"
		if m.NumFeatures != nil {
			features = strconv.Itoa(*m.NumFeatures)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Disease, dash(m.Cycle), features, dash(m.ModelPath))
	}
	return tw.Flush()
}

// Health writes the service health line.
func Health(w io.Writer, h models.ServiceHealth) error {
	loaded := "none"
	if len(h.ModelsLoaded) > 0 {
		loaded = strings.Join(h.ModelsLoaded, ", ")
	}
	_, err := fmt.Fprintf(w, "status: %s (models loaded: %s)\n", h.Status, loaded)
	return err
}

// Advisories writes soft warnings about the submitted values.
func Advisories(w io.Writer, advisories []normalizer.Advisory) error {
	if len(advisories) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "Warnings:"); err != nil {
		return err
	}
	for _, a := range advisories {
		if _, err := fmt.Fprintf(w, "  - %s: %s\n", label(a.Field), a.Message); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}

// Derived writes the locally previewed derived measures.
func Derived(w io.Writer, d models.DerivedMeasures) error {
	var parts []string
	if d.TGToHDLRatio != nil {
		parts = append(parts, "TG/HDL "+strconv.FormatFloat(*d.TGToHDLRatio, 'f', 2, 64))
	}
	if d.NonHDLCholMgDL != nil {
		parts = append(parts, "non-HDL "+strconv.FormatFloat(*d.NonHDLCholMgDL, 'f', 1, 64)+" mg/dL")
	}
	if d.BMI != nil {
		bmi := "BMI " + strconv.FormatFloat(*d.BMI, 'f', 1, 64)
		if d.BMIFromMeasurement {
			bmi += " (from height/weight)"
		}
		parts = append(parts, bmi)
	}
	if len(parts) == 0 {
		return nil
	}
	_, err := fmt.Fprintf(w, "Derived: %s\n\n", strings.Join(parts, ", "))
	return err
}

// Fields writes the clinical form catalogue.
func Fields(w io.Writer, fields []normalizer.Field) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tLABEL\tUNIT\tREQUIRED\tACCEPTS")
	for _, f := range fields {
		required := "no"
		if f.Required {
			required = "yes"
		}
		accepts := "-"
		switch f.Kind {
		case normalizer.KindNumeric:
			accepts = strconv.FormatFloat(f.Min, 'f', -1, 64) + ".." + strconv.FormatFloat(f.Max, 'f', -1, 64)
		case normalizer.KindCategorical:
			accepts = strings.Join(f.Choices, "|")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", f.Name, f.Label, dash(f.Unit), required, accepts)
	}
	return tw.Flush()
}

// BatchRow is one line of a batch summary. Err is set when the input failed.
type BatchRow struct {
	Result models.PredictionResult
	Err    error
}

// Batch writes one line per batch input in input order.
func Batch(w io.Writer, rows []BatchRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tREQUEST ID\tRUN ID\tLABEL\tPROBABILITIES")
	for i, row := range rows {
		if row.Err != nil {
			fmt.Fprintf(tw, "%d\t-\t-\terror\t%s\n", i+1, batchError(row.Err))
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1,
			dash(row.Result.RequestID),
			dash(row.Result.RunID),
			row.Result.PredictedLabel,
			Probabilities(row.Result.Probabilities),
		)
	}
	return tw.Flush()
}

func batchError(err error) string {
	var verr *utils.ValidationError
	if errors.As(err, &verr) && len(verr.Fields) > 0 {
		return "missing or invalid: " + strings.Join(verr.Fields, ", ")
	}
	return utils.ErrorMessage(err)
}

// JSON writes v as indented JSON.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Error writes err for the user. Validation failures list each offending field.
func Error(w io.Writer, err error) error {
	if err == nil {
		return nil
	}
	var verr *utils.ValidationError
	if errors.As(err, &verr) && len(verr.Fields) > 0 {
		if _, werr := fmt.Fprintln(w, "error: please enter valid values for the required fields:"); werr != nil {
			return werr
		}
		for _, name := range verr.Fields {
			if _, werr := fmt.Fprintf(w, "  - %s (%s)\n", label(name), name); werr != nil {
				return werr
			}
		}
		return nil
	}
	_, werr := fmt.Fprintf(w, "error: %s\n", utils.ErrorMessage(err))
	return werr
}

func label(name string) string {
	if f, ok := normalizer.Lookup(name); ok && f.Label != "" {
		return f.Label
	}
	return name
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
