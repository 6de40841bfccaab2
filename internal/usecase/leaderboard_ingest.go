package usecase

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"aerorelay-service/internal/domain/entity"
	"aerorelay-service/internal/domain/repository"
	"aerorelay-service/pkg/logger"
	"aerorelay-service/pkg/utils"

	"github.com/jszwec/csvutil"
)

// leaderboardCSVRow holds the known columns. Everything else is a metric.
type leaderboardCSVRow struct {
	AirlineIATA      string `csv:"airline_iata"`
	Category         string `csv:"category"`
	TravelClass      string `csv:"travel_class"`
	LeaderboardRank  string `csv:"leaderboard_rank"`
	LeaderboardScore string `csv:"leaderboard_score"`
	AvgRating        string `csv:"avg_rating"`
	ReviewCount      string `csv:"review_count"`
	PositiveCount    string `csv:"positive_count"`
	NegativeCount    string `csv:"negative_count"`
	PositiveRatio    string `csv:"positive_ratio"`
}

// IngestOptions are the operator supplied snapshot attributes
type IngestOptions struct {
	Label          string
	TravelClass    string
	ReportingStart string
	ReportingEnd   string
	Notes          string
	DryRun         bool
}

// LeaderboardCSV is a parsed leaderboard upload
type LeaderboardCSV struct {
	Rows       []entity.LeaderboardRow
	MetricKeys []string
}

// ParseLeaderboardCSV decodes a leaderboard upload. Headers are matched
// case-insensitively and ranks are assigned per category in file order when absent.
func ParseLeaderboardCSV(r io.Reader) (*LeaderboardCSV, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	rawHeader, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("CSV file has no header row: %w", entity.ErrValidation)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	header := make([]string, len(rawHeader))
	for i, h := range rawHeader {
		header[i] = utils.NormalizeHeader(strings.TrimPrefix(h, "\ufeff"))
	}

	dec, err := csvutil.NewDecoder(reader, header...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV decoder: %w", err)
	}

	parsed := &LeaderboardCSV{}
	autoRank := make(map[string]int)
	line := 1
	for {
		var raw leaderboardCSVRow
		err := dec.Decode(&raw)
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		row, err := toLeaderboardRow(raw, line)
		if err != nil {
			return nil, err
		}
		if row.Rank == 0 {
			autoRank[row.Category]++
			row.Rank = autoRank[row.Category]
		}

		// unused columns are known once the first row is decoded
		if parsed.MetricKeys == nil {
			parsed.MetricKeys = []string{}
			for _, idx := range dec.Unused() {
				if header[idx] != "" {
					parsed.MetricKeys = append(parsed.MetricKeys, header[idx])
				}
			}
		}

		record := dec.Record()
		for _, idx := range dec.Unused() {
			if idx >= len(record) || header[idx] == "" {
				continue
			}
			if v, ok := utils.ParseDecimal(record[idx]); ok {
				if row.Metrics == nil {
					row.Metrics = make(map[string]float64)
				}
				row.Metrics[header[idx]] = v
			}
		}
		parsed.Rows = append(parsed.Rows, row)
	}

	if len(parsed.Rows) == 0 {
		return nil, fmt.Errorf("CSV contains no data rows: %w", entity.ErrValidation)
	}
	return parsed, nil
}

func toLeaderboardRow(raw leaderboardCSVRow, line int) (entity.LeaderboardRow, error) {
	row := entity.LeaderboardRow{
		Line:        line,
		AirlineIATA: strings.ToUpper(strings.TrimSpace(raw.AirlineIATA)),
		Category:    strings.TrimSpace(raw.Category),
		TravelClass: strings.TrimSpace(raw.TravelClass),
	}
	if row.AirlineIATA == "" || row.Category == "" {
		return row, fmt.Errorf("line %d: each row must contain airline_iata and category: %w", line, entity.ErrValidation)
	}

	score, ok := utils.ParseDecimal(raw.LeaderboardScore)
	if !ok {
		return row, fmt.Errorf("line %d: row for airline %s / category %s is missing leaderboard_score: %w",
			line, row.AirlineIATA, row.Category, entity.ErrValidation)
	}
	row.LeaderboardScore = score

	if rank, ok := utils.ParseWhole(raw.LeaderboardRank); ok {
		row.Rank = rank
	}
	row.AvgRating = decimalPtr(raw.AvgRating)
	row.ReviewCount = wholePtr(raw.ReviewCount)
	row.PositiveCount = wholePtr(raw.PositiveCount)
	row.NegativeCount = wholePtr(raw.NegativeCount)
	row.PositiveRatio = decimalPtr(raw.PositiveRatio)
	return row, nil
}

func decimalPtr(raw string) *float64 {
	v, ok := utils.ParseDecimal(raw)
	if !ok {
		return nil
	}
	return &v
}

func wholePtr(raw string) *int {
	v, ok := utils.ParseWhole(raw)
	if !ok {
		return nil
	}
	return &v
}

// LeaderboardIngest loads leaderboard uploads into a new active snapshot
type LeaderboardIngest struct {
	airlineRepo     repository.AirlineRepository
	leaderboardRepo repository.LeaderboardRepository
	logger          logger.Logger
	now             func() time.Time
}

// NewLeaderboardIngest creates a new leaderboard ingest
func NewLeaderboardIngest(
	airlineRepo repository.AirlineRepository,
	leaderboardRepo repository.LeaderboardRepository,
	logger logger.Logger,
) *LeaderboardIngest {
	return &LeaderboardIngest{
		airlineRepo:     airlineRepo,
		leaderboardRepo: leaderboardRepo,
		logger:          logger,
		now:             time.Now,
	}
}

// Ingest parses r, resolves every airline and, unless DryRun is set,
// stores and activates the snapshot
func (i *LeaderboardIngest) Ingest(ctx context.Context, r io.Reader, opts IngestOptions) (*entity.IngestReport, error) {
	parsed, err := ParseLeaderboardCSV(r)
	if err != nil {
		return nil, err
	}

	travelClass := strings.TrimSpace(opts.TravelClass)
	if travelClass == "" {
		travelClass = parsed.Rows[0].TravelClass
	}
	if travelClass == "" {
		return nil, fmt.Errorf("travel class must be provided via --travel-class or in the CSV: %w", entity.ErrValidation)
	}

	start, err := parseReportingDate("reporting-start", opts.ReportingStart)
	if err != nil {
		return nil, err
	}
	end, err := parseReportingDate("reporting-end", opts.ReportingEnd)
	if err != nil {
		return nil, err
	}

	airlines, err := i.resolveAirlines(ctx, parsed.Rows)
	if err != nil {
		return nil, err
	}

	report := &entity.IngestReport{
		MetricKeys: parsed.MetricKeys,
		Rows:       len(parsed.Rows),
		Categories: make(map[string]int),
		DryRun:     opts.DryRun,
	}

	rankings := make([]*entity.LeaderboardRanking, 0, len(parsed.Rows))
	for _, row := range parsed.Rows {
		ranking := &entity.LeaderboardRanking{
			AirlineID:        airlines[row.AirlineIATA].ID,
			Category:         row.Category,
			TravelClass:      firstNonEmpty(row.TravelClass, travelClass),
			Rank:             row.Rank,
			LeaderboardScore: row.LeaderboardScore,
			AvgRating:        row.AvgRating,
			ReviewCount:      row.ReviewCount,
			PositiveCount:    row.PositiveCount,
			NegativeCount:    row.NegativeCount,
			PositiveRatio:    row.PositiveRatio,
		}
		for _, key := range parsed.MetricKeys {
			if v, ok := row.Metrics[key]; ok {
				ranking.Metrics = append(ranking.Metrics, entity.LeaderboardMetric{Name: key, Value: v})
			}
		}
		report.Categories[row.Category]++
		report.Metrics += len(ranking.Metrics)
		rankings = append(rankings, ranking)
	}
	report.Rankings = len(rankings)

	if opts.DryRun {
		i.logger.Info("Leaderboard dry run completed",
			"rows", report.Rows,
			"metricKeys", strings.Join(report.MetricKeys, ","))
		return report, nil
	}

	label := strings.TrimSpace(opts.Label)
	if label == "" {
		label = fmt.Sprintf("%s upload %s", travelClass, i.now().UTC().Format("2006-01-02 15:04:05"))
	}

	snapshot := &entity.LeaderboardSnapshot{
		Label:          label,
		TravelClass:    travelClass,
		Source:         entity.SnapshotSourceManual,
		ReportingStart: start,
		ReportingEnd:   end,
		Notes:          strings.TrimSpace(opts.Notes),
	}
	if err := i.leaderboardRepo.SaveSnapshot(ctx, snapshot, rankings); err != nil {
		return nil, fmt.Errorf("failed to save leaderboard snapshot: %w", err)
	}
	if err := i.leaderboardRepo.Activate(ctx, snapshot.ID); err != nil {
		return nil, fmt.Errorf("failed to activate leaderboard snapshot %s: %w", snapshot.ID, err)
	}

	report.SnapshotID = snapshot.ID
	report.Label = label
	i.logger.Info("Leaderboard snapshot activated",
		"snapshotId", snapshot.ID,
		"label", label,
		"travelClass", travelClass,
		"rankings", report.Rankings,
		"metrics", report.Metrics)

	return report, nil
}

func (i *LeaderboardIngest) resolveAirlines(ctx context.Context, rows []entity.LeaderboardRow) (map[string]*entity.Airline, error) {
	codes := make([]string, 0)
	seen := make(map[string]bool)
	for _, row := range rows {
		if !seen[row.AirlineIATA] {
			seen[row.AirlineIATA] = true
			codes = append(codes, row.AirlineIATA)
		}
	}
	sort.Strings(codes)

	airlines, err := i.airlineRepo.FindByCodes(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve airlines: %w", err)
	}

	var missing []string
	for _, code := range codes {
		if airlines[code] == nil {
			missing = append(missing, code)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("airline IATA codes not found: %s: %w", strings.Join(missing, ", "), entity.ErrNotFound)
	}
	return airlines, nil
}

func parseReportingDate(flag, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("invalid date format for --%s: %s: %w", flag, value, entity.ErrValidation)
	}
	return &t, nil
}
