package transcript

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/rowanhealth/clinsight/internal/models"
)

// Shared codec instances; both are safe for concurrent use with EncodeAll
// and DecodeAll.
var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// Compress serializes utterances to JSON and zstd-compresses the result for
// archival alongside the session row.
func Compress(utterances []models.Utterance) ([]byte, error) {
	data, err := json.Marshal(utterances)
	if err != nil {
		return nil, fmt.Errorf("marshaling transcript: %w", err)
	}
	return zstdEncoder.EncodeAll(data, nil), nil
}

// Decompress is the inverse of Compress.
func Decompress(blob []byte) ([]models.Utterance, error) {
	data, err := zstdDecoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing transcript: %w", err)
	}
	var utterances []models.Utterance
	if err := json.Unmarshal(data, &utterances); err != nil {
		return nil, fmt.Errorf("unmarshaling transcript: %w", err)
	}
	return utterances, nil
}
