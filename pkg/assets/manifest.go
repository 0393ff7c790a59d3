package assets

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// ManifestKey is the store key of the run manifest.
const ManifestKey = "manifest.json"

// Manifest records what a training run fitted, so later runs can lay out
// their sequences identically and notice when vocabularies changed underneath
// them.
type Manifest struct {
	RunID     uuid.UUID `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	// TrainData is the input file the vocabularies were fitted on.
	TrainData string `json:"train_data"`
	// ColumnSeq is the canonical column order, ending with "mask".
	ColumnSeq []string `json:"column_seq"`
	// Cardinality is the vocabulary length of each categorical column.
	Cardinality map[string]int `json:"cardinality"`
	// Fingerprints holds Fingerprint of each vocabulary.
	Fingerprints map[string]string `json:"fingerprints"`
}

func NewManifest(trainData string) *Manifest {
	return &Manifest{
		RunID:        uuid.New(),
		CreatedAt:    time.Now().UTC(),
		TrainData:    trainData,
		Cardinality:  make(map[string]int),
		Fingerprints: make(map[string]string),
	}
}

// Fingerprint is the hex BLAKE2b-256 digest of the .npy encoding of classes.
func Fingerprint(classes []string) string {
	sum := blake2b.Sum256(EncodeStrings(classes))
	return hex.EncodeToString(sum[:])
}

func SaveManifest(store Store, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	err = store.Put(ManifestKey, data)
	if err != nil {
		return fmt.Errorf("saving manifest: %w", err)
	}
	return nil
}

// LoadManifest returns an error wrapping ErrNotFound if no training run has
// saved a manifest to store.
func LoadManifest(store Store) (*Manifest, error) {
	data, err := store.Get(ManifestKey)
	if err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}
	m := &Manifest{}
	err = json.Unmarshal(data, m)
	if err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return m, nil
}
