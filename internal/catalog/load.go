package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"cropopt/internal/model"
)

var ErrMissingColumn = errors.New("required column missing")

const legacyAllRegions = "Todas_Regioes"

// column describes one catalog field and the header names accepted for it.
type column struct {
	key      string
	aliases  []string
	required bool
}

var detailedColumns = []column{
	{key: "name", aliases: []string{"Nome"}, required: true},
	{key: "profit_per_ha", aliases: []string{"Lucro_R$/ha"}, required: true},
	{key: "yield_per_ha", aliases: []string{"Produtividade_t/ha"}, required: true},
	{key: "cost_per_ha", aliases: []string{"Custo_Producao_R$/ha"}, required: true},
	{key: "water_mm", aliases: []string{"Requisito_Agua_mm"}, required: true},
	{key: "return_per_ha", aliases: []string{"Retorno_Financeiro_R$/ha"}},
	{key: "cycle_min_days"},
	{key: "cycle_max_days", aliases: []string{"Ciclo_dias"}, required: true},
	{key: "min_footprint_m2", aliases: []string{"Espaco_Minimo_m2_por_Planta_ou_Area_minima_por_hectare"}},
	{key: "planting_season", aliases: []string{"Epoca_Plantio"}},
	{key: "regions", aliases: []string{"Regiao_Adaptada"}, required: true},
	{key: "ph_min", aliases: []string{"pH_Solo_Min"}, required: true},
	{key: "ph_max", aliases: []string{"pH_Solo_Max"}, required: true},
	{key: "temp_min", aliases: []string{"Temperatura_Min_C"}, required: true},
	{key: "temp_max", aliases: []string{"Temperatura_Max_C"}, required: true},
	{key: "positive", aliases: []string{"Compatibilidade_Positiva"}},
	{key: "negative", aliases: []string{"Compatibilidade_Negativa"}},
	{key: "crop_type", aliases: []string{"Tipo_Cultura"}},
}

// LoadFile loads a detailed catalog from a .csv or .xlsx file. sheet selects
// the workbook sheet; empty means the first one.
func LoadFile(path, sheet string) (*Catalog, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return LoadXLSX(path, sheet)
	case ".csv", "":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return LoadCSV(f)
	default:
		return nil, fmt.Errorf("unsupported catalog format: %s", path)
	}
}

func LoadCSV(in io.Reader) (*Catalog, error) {
	rows, err := readCSV(in)
	if err != nil {
		return nil, err
	}
	return buildDetailed(rows)
}

func LoadXLSX(path, sheet string) (*Catalog, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog workbook: %w", err)
	}
	defer wb.Close()

	if sheet == "" {
		sheets := wb.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("catalog workbook %s has no sheets", path)
		}
		sheet = sheets[0]
	}
	rows, err := wb.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read catalog sheet %s: %w", sheet, err)
	}
	return buildDetailed(rows)
}

func readCSV(in io.Reader) ([][]string, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read catalog csv: %w", err)
	}
	return rows, nil
}

func buildDetailed(rows [][]string) (*Catalog, error) {
	table, err := newSheet(rows, detailedColumns)
	if err != nil {
		return nil, err
	}

	records := make([]model.CropRecord, 0, len(table.rows))
	for i, row := range table.rows {
		r := table.reader(row, i+2)
		record := model.CropRecord{
			Name:           r.text("name"),
			ProfitPerHa:    r.number("profit_per_ha"),
			YieldPerHa:     r.number("yield_per_ha"),
			CostPerHa:      r.number("cost_per_ha"),
			WaterMM:        r.number("water_mm"),
			ReturnPerHa:    r.number("return_per_ha"),
			CycleMaxDays:   r.integer("cycle_max_days"),
			MinFootprintM2: r.number("min_footprint_m2"),
			PlantingSeason: r.text("planting_season"),
			Regions:        normalizeRegions(ParseList(r.text("regions"), ";")),
			PHMin:          r.number("ph_min"),
			PHMax:          r.number("ph_max"),
			TempMin:        r.number("temp_min"),
			TempMax:        r.number("temp_max"),
			Positive:       normalizeTokens(ParseList(r.text("positive"), ";"), legacyPositiveTokens),
			Negative:       normalizeTokens(ParseList(r.text("negative"), ";"), legacyNegativeTokens),
			CropType:       r.text("crop_type"),
		}
		record.CycleMinDays = record.CycleMaxDays
		if r.present("cycle_min_days") {
			record.CycleMinDays = r.integer("cycle_min_days")
		}
		if r.err != nil {
			return nil, r.err
		}
		records = append(records, record)
	}
	return New(records)
}

func normalizeRegions(regions []string) []string {
	for i, region := range regions {
		if region == legacyAllRegions {
			regions[i] = model.AllRegions
		}
	}
	return regions
}

// sheet is a header-indexed view over raw string rows.
type sheet struct {
	index map[string]int
	rows  [][]string
}

func newSheet(rows [][]string, columns []column) (sheet, error) {
	if len(rows) == 0 {
		return sheet{}, fmt.Errorf("%w: empty catalog", ErrMissingColumn)
	}
	header := rows[0]
	s := sheet{index: make(map[string]int, len(columns))}
	for _, col := range columns {
		idx := columnIndex(header, append([]string{col.key}, col.aliases...))
		if idx < 0 {
			if col.required {
				return sheet{}, fmt.Errorf("%w: %s", ErrMissingColumn, col.key)
			}
			continue
		}
		s.index[col.key] = idx
	}
	for _, row := range rows[1:] {
		if blankRecord(row) {
			continue
		}
		s.rows = append(s.rows, row)
	}
	return s, nil
}

func (s sheet) reader(row []string, line int) *rowReader {
	return &rowReader{index: s.index, row: row, line: line}
}

// rowReader parses typed fields and keeps the first error.
type rowReader struct {
	index map[string]int
	row   []string
	line  int
	err   error
}

func (r *rowReader) present(key string) bool {
	return strings.TrimSpace(r.text(key)) != ""
}

func (r *rowReader) text(key string) string {
	idx, ok := r.index[key]
	if !ok || idx >= len(r.row) {
		return ""
	}
	return strings.TrimSpace(r.row[idx])
}

func (r *rowReader) number(key string) float64 {
	raw := r.text(key)
	if raw == "" || r.err != nil {
		return 0
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		r.err = fmt.Errorf("parse %s row %d: %w", key, r.line, err)
		return 0
	}
	return value
}

func (r *rowReader) integer(key string) int {
	value := r.number(key)
	return int(value)
}

func columnIndex(header []string, names []string) int {
	for _, name := range names {
		want := strings.ToLower(strings.TrimSpace(name))
		for i, field := range header {
			if strings.ToLower(strings.TrimSpace(field)) == want {
				return i
			}
		}
	}
	return -1
}

func blankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
