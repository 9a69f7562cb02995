package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"cropopt/internal/model"
)

// Tabular catalogs hold 1-3 normalized scores: CostPerHa, YieldPerHa,
// WaterMM and ReturnPerHa carry the score, not the agronomic unit.
var tabularColumns = []column{
	{key: "crop", aliases: []string{"CULTURA"}, required: true},
	{key: "cost", aliases: []string{"CUSTO PRODUÇÃO"}, required: true},
	{key: "yield", aliases: []string{"PRODUTIVIDADE"}, required: true},
	{key: "cycle_min_days", aliases: []string{"CICLO DE VIDA MIN EM DIAS"}},
	{key: "cycle_max_days", aliases: []string{"CICLO DE VIDA MAX EM DIAS"}, required: true},
	{key: "water", aliases: []string{"REQUISITO DE ÁGUA"}, required: true},
	{key: "return", aliases: []string{"RETORNO FINANCEIRO"}},
	{key: "synergy", aliases: []string{"SINERGIA"}},
	{key: "companion", aliases: []string{"COMPANHEIRA"}},
	{key: "neutral", aliases: []string{"NEUTRA"}},
	{key: "antagonistic", aliases: []string{"ANTAGÔNICA"}},
	{key: "min_footprint_m2", aliases: []string{"ESPAÇO MÍNIMO m²"}, required: true},
}

var tabularHeader = []string{
	"crop", "cost", "yield", "cycle_min_days", "cycle_max_days", "water", "return",
	"synergy", "companion", "neutral", "antagonistic", "min_footprint_m2",
}

const tabularListSeparators = ",;"

func LoadTableFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadTableCSV(f)
}

func LoadTableCSV(in io.Reader) (*Catalog, error) {
	rows, err := readCSV(in)
	if err != nil {
		return nil, err
	}
	table, err := newSheet(rows, tabularColumns)
	if err != nil {
		return nil, err
	}

	records := make([]model.CropRecord, 0, len(table.rows))
	for i, row := range table.rows {
		r := table.reader(row, i+2)
		record := model.CropRecord{
			Name:           r.text("crop"),
			CostPerHa:      r.number("cost"),
			YieldPerHa:     r.number("yield"),
			CycleMaxDays:   r.integer("cycle_max_days"),
			WaterMM:        r.number("water"),
			ReturnPerHa:    r.number("return"),
			Synergy:        ParseList(r.text("synergy"), tabularListSeparators),
			Companion:      ParseList(r.text("companion"), tabularListSeparators),
			Neutral:        ParseList(r.text("neutral"), tabularListSeparators),
			Antagonistic:   ParseList(r.text("antagonistic"), tabularListSeparators),
			MinFootprintM2: r.number("min_footprint_m2"),
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

// WriteTableCSV writes a tabular catalog in the layout LoadTableCSV reads.
func WriteTableCSV(out io.Writer, c *Catalog) error {
	writer := csv.NewWriter(out)
	if err := writer.Write(tabularHeader); err != nil {
		return err
	}
	for _, record := range c.records {
		row := []string{
			record.Name,
			formatScore(record.CostPerHa),
			formatScore(record.YieldPerHa),
			strconv.Itoa(record.CycleMinDays),
			strconv.Itoa(record.CycleMaxDays),
			formatScore(record.WaterMM),
			formatScore(record.ReturnPerHa),
			joinList(record.Synergy),
			joinList(record.Companion),
			joinList(record.Neutral),
			joinList(record.Antagonistic),
			strconv.FormatFloat(record.MinFootprintM2, 'f', -1, 64),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write table row %s: %w", record.Name, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func joinList(items []string) string {
	if len(items) == 0 {
		return "nenhuma"
	}
	return strings.Join(items, ",")
}
