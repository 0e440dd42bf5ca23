package pivot

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/de-tools/pivot-reports/pkg/models/domain"
	"github.com/rs/zerolog"
)

var (
	ErrEmptySource     = errors.New("no records found in CSV")
	ErrMalformedSource = errors.New("malformed CSV")
	ErrGroupByRequired = errors.New("groupBy column is required")
)

// Query describes how a CSV source is pivoted.
type Query struct {
	AccountIDs      []string
	GroupBy         string
	InternalGroupBy []string
	ShowTotalBy     []string
	PriceColumns    []string
}

func QueryFromParameters(p domain.ReportParameters) Query {
	return Query{
		AccountIDs:      p.AccountIDs(),
		GroupBy:         p.GroupBy,
		InternalGroupBy: p.InternalGroupBy,
		ShowTotalBy:     p.ShowTotalBy,
		PriceColumns:    p.PriceColumns,
	}
}

// normalized drops blank column names and account ids, as left behind by
// trailing commas in list parameters.
func (q Query) normalized() Query {
	q.AccountIDs = nonBlank(q.AccountIDs)
	q.GroupBy = strings.TrimSpace(q.GroupBy)
	q.InternalGroupBy = nonBlank(q.InternalGroupBy)
	q.ShowTotalBy = nonBlank(q.ShowTotalBy)
	q.PriceColumns = nonBlank(q.PriceColumns)
	return q
}

func nonBlank(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

type Analyser struct {
	now func() time.Time
}

func NewAnalyser() *Analyser {
	return &Analyser{now: time.Now}
}

// Analyse streams a CSV source and assembles the pivot document.
//
// Rows of accounts that were not requested are dropped while parsing. A source
// without data rows fails with ErrEmptySource; a requested account without
// rows is reported with zero counts instead.
func (a *Analyser) Analyse(ctx context.Context, src io.Reader, q Query) (*domain.ReportDocument, error) {
	logger := zerolog.Ctx(ctx)

	q = q.normalized()
	if q.GroupBy == "" {
		return nil, ErrGroupByRequired
	}

	stream, err := a.read(ctx, src, func(account string) bool {
		return len(q.AccountIDs) == 0 || slices.Contains(q.AccountIDs, account)
	})
	if err != nil {
		return nil, err
	}
	if stream.rows == 0 {
		return nil, ErrEmptySource
	}

	for _, id := range q.AccountIDs {
		if _, ok := stream.accounts[id]; !ok {
			logger.Warn().
				Str("account_id", id).
				Strs("available", stream.accountOrder).
				Msg("no records found for requested account")
		}
	}

	aggregable := q.PriceColumns
	if len(aggregable) == 0 {
		sample := stream.records
		if len(sample) == 0 {
			sample = stream.sample
		}
		aggregable = AutoDetectAggregableColumns(sample, stream.columns)
		logger.Debug().Strs("columns", aggregable).Msg("auto detected aggregable columns")
	}

	if err := ValidateColumnsExist(stream.columns, q.GroupBy, q.InternalGroupBy, q.ShowTotalBy, aggregable); err != nil {
		return nil, err
	}

	currency := DetectCurrency(stream.records)
	partitions := PartitionByAccount(stream.records, q.AccountIDs)

	accounts := make([]domain.AccountReport, 0, len(partitions))
	for _, partition := range partitions {
		report := buildAccountReport(partition, q, aggregable, currency)
		logger.Debug().
			Str("account_id", report.AccountID).
			Int("records", report.TotalCount).
			Int("groups", len(report.Groups)).
			Msg("account processed")
		accounts = append(accounts, report)
	}

	return &domain.ReportDocument{
		Accounts:     accounts,
		Currency:     currency,
		PriceColumns: aggregable,
		Metadata: domain.ReportMetadata{
			TotalRecords:    len(stream.records),
			GroupBy:         q.GroupBy,
			InternalGroupBy: q.InternalGroupBy,
			ShowTotalBy:     q.ShowTotalBy,
			PriceColumns:    aggregable,
			GeneratedAt:     a.now().UTC(),
		},
	}, nil
}

// AnalyseFile analyses a CSV file. The path must already be resolved against the storage root.
func (a *Analyser) AnalyseFile(ctx context.Context, path string, q Query) (*domain.ReportDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return a.Analyse(ctx, f, q)
}

func buildAccountReport(
	partition AccountPartition,
	q Query,
	aggregable []string,
	currency string,
) domain.AccountReport {
	buckets := groupRecords(partition.Records, q.GroupBy)

	groups := make([]domain.MainGroup, 0, len(buckets))
	for _, b := range buckets {
		nested := BuildPivot(b.records, q.InternalGroupBy, q.ShowTotalBy, aggregable)
		groups = append(groups, domain.MainGroup{
			GroupColumn:  q.GroupBy,
			GroupKey:     b.key,
			GroupValue:   b.display,
			NestedGroups: nested.Nodes,
			Leaves:       nested.Leaves,
			Totals:       ComputeTotals(b.records, aggregable),
			Count:        len(b.records),
		})
	}

	return domain.AccountReport{
		AccountID:   partition.AccountID,
		Groups:      groups,
		GrandTotals: ComputeTotals(partition.Records, aggregable),
		TotalCount:  len(partition.Records),
		Currency:    currency,
	}
}

type csvStream struct {
	columns      []string
	records      []domain.Record
	sample       []domain.Record
	rows         int
	accounts     map[string]struct{}
	accountOrder []string
}

// read parses src and keeps the records whose account_id satisfies keep.
func (a *Analyser) read(ctx context.Context, src io.Reader, keep func(account string) bool) (*csvStream, error) {
	reader := csv.NewReader(bufio.NewReader(src))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptySource
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSource, err)
	}

	columns := make([]string, len(header))
	for i, column := range header {
		if i == 0 {
			column = strings.TrimPrefix(column, "\ufeff")
		}
		columns[i] = strings.TrimSpace(column)
	}

	stream := &csvStream{
		columns:  columns,
		records:  make([]domain.Record, 0),
		accounts: make(map[string]struct{}),
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedSource, err)
		}

		record := make(domain.Record, len(columns))
		for i, column := range columns {
			if i < len(row) {
				record[column] = strings.TrimSpace(row[i])
			} else {
				record[column] = ""
			}
		}

		stream.rows++
		if len(stream.sample) < detectionSampleSize {
			stream.sample = append(stream.sample, record)
		}

		account := record["account_id"]
		if _, seen := stream.accounts[account]; !seen {
			stream.accounts[account] = struct{}{}
			stream.accountOrder = append(stream.accountOrder, account)
		}

		if keep(account) {
			stream.records = append(stream.records, record)
		}
	}

	return stream, nil
}

// SourceInfo summarises a CSV source without pivoting it.
type SourceInfo struct {
	Columns      []string
	PriceColumns []string
	Accounts     []string
	Rows         int
}

// Inspect reads the header and rows of src and reports its columns, the
// accounts it contains and the columns that look aggregable.
func (a *Analyser) Inspect(ctx context.Context, src io.Reader) (*SourceInfo, error) {
	stream, err := a.read(ctx, src, func(string) bool { return false })
	if err != nil {
		return nil, err
	}

	return &SourceInfo{
		Columns:      stream.columns,
		PriceColumns: AutoDetectAggregableColumns(stream.sample, stream.columns),
		Accounts:     stream.accountOrder,
		Rows:         stream.rows,
	}, nil
}
