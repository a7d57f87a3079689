package s0_data

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/wonny/longshort/internal/contracts"
	"github.com/wonny/longshort/internal/riskmodel"
)

// CSV file names inside the data directory
const (
	UniverseFile     = "universe.csv"
	FactorsFile      = "factors.csv"
	RiskLoadingsFile = "risk_loadings.csv"
)

type universeRow struct {
	Date     string `csv:"date"`
	Symbol   string `csv:"symbol"`
	Eligible string `csv:"eligible"` // optional, default true
	Reason   string `csv:"reason"`
}

type factorRow struct {
	Date   string `csv:"date"`
	Symbol string `csv:"symbol"`
	Field  string `csv:"field"`
	Value  string `csv:"value"` // empty or NaN = missing
}

type loadingRow struct {
	Date    string `csv:"date"`
	Version int    `csv:"version"`
	Symbol  string `csv:"symbol"`
	Factor  string `csv:"factor"`
	Loading string `csv:"loading"`
}

// observation is one dated value
type observation struct {
	date  time.Time
	value float64
}

// series holds observations sorted by date ascending
type series []observation

// asOf returns the observations known on date (date inclusive)
func (s series) asOf(date time.Time) series {
	n := sort.Search(len(s), func(i int) bool { return s[i].date.After(date) })
	return s[:n]
}

// CSVProvider serves universe, factor and risk-loading data from CSV files.
// Every lookup is point-in-time: nothing dated after the request date is visible.
// ⭐ SSOT: 파일 기반 데이터 제공자
type CSVProvider struct {
	universe map[string][]universeRow // date → rows
	dates    []time.Time              // universe dates ascending
	factors  map[string]map[string]series
	loadings map[int]map[string]map[string]series // version → symbol → factor
}

// NewCSVProvider loads universe.csv, factors.csv and (optionally) risk_loadings.csv from dir
func NewCSVProvider(dir string) (*CSVProvider, error) {
	p := &CSVProvider{
		universe: make(map[string][]universeRow),
		factors:  make(map[string]map[string]series),
		loadings: make(map[int]map[string]map[string]series),
	}

	var universe []universeRow
	if err := readCSV(filepath.Join(dir, UniverseFile), &universe); err != nil {
		return nil, err
	}
	if err := p.indexUniverse(universe); err != nil {
		return nil, err
	}

	var factors []factorRow
	if err := readCSV(filepath.Join(dir, FactorsFile), &factors); err != nil {
		return nil, err
	}
	if err := p.indexFactors(factors); err != nil {
		return nil, err
	}

	loadingsPath := filepath.Join(dir, RiskLoadingsFile)
	if _, err := os.Stat(loadingsPath); err == nil {
		var loadings []loadingRow
		if err := readCSV(loadingsPath, &loadings); err != nil {
			return nil, err
		}
		if err := p.indexLoadings(loadings); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func readCSV(path string, out interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	if err := gocsv.UnmarshalFile(f, out); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (p *CSVProvider) indexUniverse(rows []universeRow) error {
	for _, row := range rows {
		date, err := time.Parse(time.DateOnly, row.Date)
		if err != nil {
			return fmt.Errorf("universe: bad date %q: %w", row.Date, err)
		}
		key := date.Format(time.DateOnly)
		if _, ok := p.universe[key]; !ok {
			p.dates = append(p.dates, date)
		}
		p.universe[key] = append(p.universe[key], row)
	}
	sort.Slice(p.dates, func(i, j int) bool { return p.dates[i].Before(p.dates[j]) })
	return nil
}

func (p *CSVProvider) indexFactors(rows []factorRow) error {
	for _, row := range rows {
		date, err := time.Parse(time.DateOnly, row.Date)
		if err != nil {
			return fmt.Errorf("factors: bad date %q: %w", row.Date, err)
		}
		value, err := parseValue(row.Value)
		if err != nil {
			return fmt.Errorf("factors: %s %s %s: %w", row.Date, row.Symbol, row.Field, err)
		}

		bySymbol, ok := p.factors[row.Field]
		if !ok {
			bySymbol = make(map[string]series)
			p.factors[row.Field] = bySymbol
		}
		bySymbol[row.Symbol] = append(bySymbol[row.Symbol], observation{date: date, value: value})
	}

	for _, bySymbol := range p.factors {
		for _, s := range bySymbol {
			sortSeries(s)
		}
	}
	return nil
}

func (p *CSVProvider) indexLoadings(rows []loadingRow) error {
	for _, row := range rows {
		date, err := time.Parse(time.DateOnly, row.Date)
		if err != nil {
			return fmt.Errorf("risk loadings: bad date %q: %w", row.Date, err)
		}
		value, err := parseValue(row.Loading)
		if err != nil {
			return fmt.Errorf("risk loadings: %s %s %s: %w", row.Date, row.Symbol, row.Factor, err)
		}

		bySymbol, ok := p.loadings[row.Version]
		if !ok {
			bySymbol = make(map[string]map[string]series)
			p.loadings[row.Version] = bySymbol
		}
		byFactor, ok := bySymbol[row.Symbol]
		if !ok {
			byFactor = make(map[string]series)
			bySymbol[row.Symbol] = byFactor
		}
		byFactor[row.Factor] = append(byFactor[row.Factor], observation{date: date, value: value})
	}

	for _, bySymbol := range p.loadings {
		for _, byFactor := range bySymbol {
			for _, s := range byFactor {
				sortSeries(s)
			}
		}
	}
	return nil
}

// Universe returns the eligible securities of the latest universe snapshot on or before date
func (p *CSVProvider) Universe(ctx context.Context, date time.Time) (*contracts.Universe, error) {
	n := sort.Search(len(p.dates), func(i int) bool { return p.dates[i].After(date) })
	if n == 0 {
		return nil, fmt.Errorf("%w: no universe on or before %s", contracts.ErrInsufficientUniverse, date.Format(time.DateOnly))
	}
	snapshot := p.dates[n-1]

	u := &contracts.Universe{
		Date:     date,
		Excluded: make(map[string]string),
	}
	for _, row := range p.universe[snapshot.Format(time.DateOnly)] {
		eligible := true
		if row.Eligible != "" {
			b, err := strconv.ParseBool(row.Eligible)
			if err != nil {
				return nil, fmt.Errorf("%w: universe %s: bad eligible flag %q", contracts.ErrDataUnavailable, row.Symbol, row.Eligible)
			}
			eligible = b
		}
		if !eligible {
			u.Excluded[row.Symbol] = row.Reason
			continue
		}
		u.Securities = append(u.Securities, row.Symbol)
	}
	sort.Strings(u.Securities)

	return u, nil
}

// Latest returns the most recent value of field per symbol, dated on or before date
func (p *CSVProvider) Latest(ctx context.Context, field string, date time.Time, symbols []string) (map[string]float64, error) {
	bySymbol, ok := p.factors[field]
	if !ok {
		return nil, fmt.Errorf("%w: unknown field %q", contracts.ErrDataUnavailable, field)
	}

	out := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		known := bySymbol[symbol].asOf(date)
		if len(known) == 0 {
			continue
		}
		out[symbol] = known[len(known)-1].value
	}
	return out, nil
}

// Window returns up to length trailing observations of field per symbol, oldest first
func (p *CSVProvider) Window(ctx context.Context, field string, date time.Time, symbols []string, length int) (map[string][]float64, error) {
	bySymbol, ok := p.factors[field]
	if !ok {
		return nil, fmt.Errorf("%w: unknown field %q", contracts.ErrDataUnavailable, field)
	}

	out := make(map[string][]float64, len(symbols))
	for _, symbol := range symbols {
		known := bySymbol[symbol].asOf(date)
		if len(known) > length {
			known = known[len(known)-length:]
		}
		if len(known) == 0 {
			continue
		}
		values := make([]float64, len(known))
		for i, obs := range known {
			values[i] = obs.value
		}
		out[symbol] = values
	}
	return out, nil
}

// RiskLoadings returns the latest loadings per symbol in the schema order of version
func (p *CSVProvider) RiskLoadings(ctx context.Context, version int, date time.Time, symbols []string) (*contracts.RiskLoadings, error) {
	schema, err := riskmodel.Lookup(version)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrDataUnavailable, err)
	}

	result := &contracts.RiskLoadings{
		Version:  version,
		Factors:  schema.Names(),
		Loadings: make(map[string][]float64),
	}

	bySymbol := p.loadings[version]
	for _, symbol := range symbols {
		byFactor, ok := bySymbol[symbol]
		if !ok {
			continue
		}
		row := make([]float64, len(schema.Factors))
		found := false
		for k, f := range schema.Factors {
			row[k] = math.NaN()
			known := byFactor[f.Name].asOf(date)
			if len(known) > 0 {
				row[k] = known[len(known)-1].value
				found = true
			}
		}
		if found {
			result.Loadings[symbol] = row
		}
	}
	return result, nil
}

func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func sortSeries(s series) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].date.Before(s[j].date) })
}
