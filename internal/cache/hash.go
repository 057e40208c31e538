package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"vkopt-message-parser/internal/domain"
)

// CalculateHashFromBytes возвращает sha256 содержимого в hex.
func CalculateHashFromBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func CalculateHashFromString(s string) string {
	return CalculateHashFromBytes([]byte(s))
}

// CalculateFileHash считает sha256 файла потоком, не читая его в память целиком.
func CalculateFileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ResultKey строит ключ кэша из хешей файлов в порядке обработки и параметров разбора.
// Одни и те же файлы с другими фильтрами дают другой ключ.
func ResultKey(fileHashes []string, opts domain.ParseOptions) (string, error) {
	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("failed to encode parse options: %w", err)
	}

	h := sha256.New()
	for _, fh := range fileHashes {
		h.Write([]byte(fh))
		h.Write([]byte{'\n'})
	}
	h.Write(optsJSON)
	return hex.EncodeToString(h.Sum(nil)), nil
}
