// Package backup implements the snapshot archive format: one self-describing
// JSON document per snapshot, written atomically into the export directory.
package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apperrors "github.com/openfund-vn/fundcore/internal/errors"
	"github.com/openfund-vn/fundcore/internal/models"
)

// SchemaVersion is the current archive schema. Restore accepts any version in
// SupportedVersions.
const SchemaVersion = 1

// SupportedVersions enumerates the archive schemas this build can restore.
var SupportedVersions = []int{1}

// Archive kinds.
const (
	KindManual = "manual"
	KindAuto   = "auto"
	KindSafety = "safety"
)

// RowCounts records per-table row counts in the manifest.
type RowCounts struct {
	Investors    int `json:"investors"`
	Tranches     int `json:"tranches"`
	Transactions int `json:"transactions"`
	FeeRecords   int `json:"fee_records"`
}

// Manifest is the archive header. The checksum covers the serialized entity
// tables, so a truncated or edited archive fails closed on restore.
type Manifest struct {
	SchemaVersion     int       `json:"schema_version"`
	ID                string    `json:"id"`
	Kind              string    `json:"kind"`
	CreatedAt         time.Time `json:"created_at"`
	RowCounts         RowCounts `json:"row_counts"`
	ChecksumAlgorithm string    `json:"checksum_algorithm"`
	Checksum          string    `json:"checksum"`
}

// Archive is the full snapshot document: manifest plus the four business
// tables. Decimals serialize as strings and dates as RFC 3339 with zone, so
// the round trip is loss-free.
type Archive struct {
	Manifest     Manifest              `json:"manifest"`
	Investors    []*models.Investor    `json:"investors"`
	Tranches     []*models.Tranche     `json:"tranches"`
	Transactions []*models.Transaction `json:"transactions"`
	FeeRecords   []*models.FeeRecord   `json:"fee_records"`
}

// tablesChecksum hashes the canonical serialization of the entity tables.
func tablesChecksum(a *Archive) (string, error) {
	payload := struct {
		Investors    []*models.Investor    `json:"investors"`
		Tranches     []*models.Tranche     `json:"tranches"`
		Transactions []*models.Transaction `json:"transactions"`
		FeeRecords   []*models.FeeRecord   `json:"fee_records"`
	}{a.Investors, a.Tranches, a.Transactions, a.FeeRecords}

	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to serialize tables: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// New assembles an archive with a computed manifest.
func New(id, kind string, createdAt time.Time, investors []*models.Investor, tranches []*models.Tranche, transactions []*models.Transaction, feeRecords []*models.FeeRecord) (*Archive, error) {
	a := &Archive{
		Investors:    investors,
		Tranches:     tranches,
		Transactions: transactions,
		FeeRecords:   feeRecords,
	}
	checksum, err := tablesChecksum(a)
	if err != nil {
		return nil, err
	}
	a.Manifest = Manifest{
		SchemaVersion:     SchemaVersion,
		ID:                id,
		Kind:              kind,
		CreatedAt:         createdAt.UTC(),
		RowCounts:         RowCounts{len(investors), len(tranches), len(transactions), len(feeRecords)},
		ChecksumAlgorithm: "sha256",
		Checksum:          checksum,
	}
	return a, nil
}

// Validate verifies the manifest against the archive body. Any mismatch means
// the archive must not be restored.
func (a *Archive) Validate() error {
	supported := false
	for _, v := range SupportedVersions {
		if a.Manifest.SchemaVersion == v {
			supported = true
			break
		}
	}
	if !supported {
		return &apperrors.ErrCorrupted{BackupID: a.Manifest.ID, Detail: fmt.Sprintf("unsupported schema version %d", a.Manifest.SchemaVersion)}
	}

	counts := RowCounts{len(a.Investors), len(a.Tranches), len(a.Transactions), len(a.FeeRecords)}
	if counts != a.Manifest.RowCounts {
		return &apperrors.ErrCorrupted{BackupID: a.Manifest.ID, Detail: "row counts do not match manifest"}
	}

	if a.Manifest.ChecksumAlgorithm != "sha256" {
		return &apperrors.ErrCorrupted{BackupID: a.Manifest.ID, Detail: "unknown checksum algorithm " + a.Manifest.ChecksumAlgorithm}
	}
	checksum, err := tablesChecksum(a)
	if err != nil {
		return err
	}
	if checksum != a.Manifest.Checksum {
		return &apperrors.ErrCorrupted{BackupID: a.Manifest.ID, Detail: "checksum mismatch"}
	}
	return nil
}

// Filename renders the on-disk name for an archive id.
func Filename(id string) string {
	return id + ".json"
}

// WriteFile persists the archive atomically: serialize to a temp file in the
// same directory, fsync, then rename over the final name.
func WriteFile(dir string, a *Archive) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize archive: %w", err)
	}

	final := filepath.Join(dir, Filename(a.Manifest.ID))
	tmp, err := os.CreateTemp(dir, a.Manifest.ID+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp archive: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write archive: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to sync archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close archive: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to publish archive: %w", err)
	}
	return final, nil
}

// ReadFile loads and validates an archive by id.
func ReadFile(dir, id string) (*Archive, error) {
	data, err := os.ReadFile(filepath.Join(dir, Filename(id)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &apperrors.ErrNotFound{Entity: "backup", ID: id}
		}
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	var a Archive
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, &apperrors.ErrCorrupted{BackupID: id, Detail: "invalid archive encoding: " + err.Error()}
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListManifests enumerates the manifests of every archive in dir, newest
// first. Archives that fail to parse are skipped.
func ListManifests(dir string) ([]Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var manifests []Manifest
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var a Archive
		if err := json.Unmarshal(data, &a); err != nil {
			continue
		}
		manifests = append(manifests, a.Manifest)
	}

	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].CreatedAt.After(manifests[j].CreatedAt)
	})
	return manifests, nil
}
