package storage

import (
	"encoding/json"
	"errors"

	"cropopt/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion stamps new records.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodePopulation(p model.PopulationRecord) ([]byte, error) {
	return json.Marshal(p)
}

func DecodePopulation(data []byte) (model.PopulationRecord, error) {
	var population model.PopulationRecord
	if err := json.Unmarshal(data, &population); err != nil {
		return model.PopulationRecord{}, err
	}
	if err := checkVersion(population.VersionedRecord); err != nil {
		return model.PopulationRecord{}, err
	}
	return population, nil
}

func EncodeFitnessHistory(history []float64) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeFitnessHistory(data []byte) ([]float64, error) {
	var history []float64
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func EncodeGenerationDiagnostics(diagnostics []model.GenerationDiagnostics) ([]byte, error) {
	return json.Marshal(diagnostics)
}

func DecodeGenerationDiagnostics(data []byte) ([]model.GenerationDiagnostics, error) {
	var diagnostics []model.GenerationDiagnostics
	if err := json.Unmarshal(data, &diagnostics); err != nil {
		return nil, err
	}
	return diagnostics, nil
}

func EncodeTopPlans(top []model.TopPlanRecord) ([]byte, error) {
	return json.Marshal(top)
}

func DecodeTopPlans(data []byte) ([]model.TopPlanRecord, error) {
	var top []model.TopPlanRecord
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, err
	}
	for _, record := range top {
		if err := checkVersion(record.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return top, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
