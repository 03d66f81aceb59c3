package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
)

var (
	ErrFileTooLarge      = errors.New("storage: размер файла превышает лимит")
	ErrEmptyFile         = errors.New("storage: файл пустой")
	ErrUnsupportedType   = errors.New("storage: неподдерживаемый тип файла")
	ErrExtensionMismatch = errors.New("storage: расширение не соответствует содержимому")
)

// Разрешённые типы результатов работы
var allowedMimeTypes = map[string]bool{
	"image/jpeg":                   true,
	"image/png":                    true,
	"image/gif":                    true,
	"image/webp":                   true,
	"image/vnd.adobe.photoshop":    true,
	"application/pdf":              true,
	"application/zip":              true,
	"application/x-7z-compressed":  true,
	"application/vnd.rar":          true,
	"application/x-rar-compressed": true,
	"video/mp4":                    true,
	"audio/mpeg":                   true,
	"audio/x-wav":                  true,
}

// Синонимы расширений
var extensionAliases = map[string]string{
	".jpeg": ".jpg",
}

// StoredFile описывает сохранённый файл.
type StoredFile struct {
	Locator     string `json:"locator"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// DeliverableStorage - файловое хранилище результатов работы по заявкам.
type DeliverableStorage struct {
	rootPath       string
	maxUploadBytes int64
}

// NewDeliverableStorage создаёт файловое хранилище.
func NewDeliverableStorage(rootPath string, maxUploadMB int64) (*DeliverableStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}

	return &DeliverableStorage{
		rootPath:       rootPath,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

// Save проверяет тип по магическим байтам и сохраняет файл в каталог заявки.
// Locator - относительный путь, который передаётся в сдачу работы.
func (s *DeliverableStorage) Save(ctx context.Context, workRequestID uuid.UUID, originalName string, r io.Reader) (*StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	br := bufio.NewReaderSize(r, 512)
	head, err := br.Peek(261)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("storage: не удалось прочитать файл: %w", err)
	}
	if len(head) == 0 {
		return nil, ErrEmptyFile
	}

	contentType, ext, err := detectType(head, originalName)
	if err != nil {
		return nil, err
	}

	fileName := fmt.Sprintf("%d_%s%s", time.Now().UnixNano(), uuid.NewString()[:8], ext)
	dir := filepath.Join(s.rootPath, workRequestID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог заявки: %w", err)
	}

	targetPath := filepath.Join(dir, fileName)
	tempPath := targetPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("storage: не удалось создать файл: %w", err)
	}
	defer f.Close()

	limited := io.LimitedReader{R: br, N: s.maxUploadBytes + 1}
	written, err := io.Copy(f, &limited)
	if err != nil {
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("storage: ошибка записи файла: %w", err)
	}

	if written > s.maxUploadBytes {
		_ = os.Remove(tempPath)
		return nil, ErrFileTooLarge
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("storage: ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tempPath, targetPath); err != nil {
		return nil, fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}

	return &StoredFile{
		Locator:     filepath.ToSlash(filepath.Join(workRequestID.String(), fileName)),
		ContentType: contentType,
		Size:        written,
	}, nil
}

// Delete удаляет файл из хранилища.
func (s *DeliverableStorage) Delete(ctx context.Context, locator string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target, err := s.resolve(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: не удалось удалить файл: %w", err)
	}
	return nil
}

// resolve не даёт locator выйти за пределы корня.
func (s *DeliverableStorage) resolve(locator string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(locator))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("storage: некорректный locator %q", locator)
	}
	return filepath.Join(s.rootPath, clean), nil
}

// detectType определяет MIME по содержимому и сверяет его с расширением имени.
func detectType(head []byte, originalName string) (string, string, error) {
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return "", "", ErrUnsupportedType
	}

	contentType := kind.MIME.Value
	if !allowedMimeTypes[contentType] {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	expected := normalizeExt("." + kind.Extension)
	if ext := normalizeExt(filepath.Ext(filepath.Base(originalName))); ext != "" && ext != expected {
		return "", "", fmt.Errorf("%w: %s вместо %s", ErrExtensionMismatch, ext, expected)
	}
	return contentType, expected, nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if alias, ok := extensionAliases[ext]; ok {
		return alias
	}
	return ext
}
