// Package store persists records in category namespaces, encoding each
// record's origin as a "[tag] " prefix on its entry name.
//
// Two entry kinds exist. Document-backed entries (.pdf) keep the uploaded
// bytes and are re-extracted on every read. Structured entries (.json) hold
// the fields directly. Entries are identified by name within a category;
// the clean name (the name without its tag) survives origin changes.
//
// There is no locking. Concurrent renames or edits of one entry can
// interleave; RenameOrigin falls back to a clean-name lookup so that a
// caller holding a stale tag still reaches the current entry.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/cfdi-ledger/constants"
	"github.com/joseph-ayodele/cfdi-ledger/internal/backend"
	"github.com/joseph-ayodele/cfdi-ledger/internal/common"
	"github.com/joseph-ayodele/cfdi-ledger/internal/entity"
	"github.com/joseph-ayodele/cfdi-ledger/internal/extract"
	"github.com/joseph-ayodele/cfdi-ledger/internal/naming"
	"github.com/joseph-ayodele/cfdi-ledger/internal/textsource"
)

const maxFieldLength = 512

// Options tune a Store. Zero values fall back to the defaults.
type Options struct {
	DefaultPageSize int
	MemoSize        int
	MemoTTL         time.Duration
	Wildcard        string
	Unknown         string
}

type Store struct {
	backend backend.Backend
	engine  *extract.Engine
	source  textsource.Source
	memo    *extractionMemo
	schema  *jsonschema.Schema
	opts    Options
	logger  *slog.Logger
}

func New(b backend.Backend, engine *extract.Engine, src textsource.Source, opts Options, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = extract.NewEngine(logger)
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = 10
	}
	if opts.Wildcard == "" {
		opts.Wildcard = constants.OriginWildcard
	}
	if opts.Unknown == "" {
		opts.Unknown = constants.OriginUnknown
	}
	schema, err := compilePayloadSchema()
	if err != nil {
		return nil, err
	}
	return &Store{
		backend: b,
		engine:  engine,
		source:  src,
		memo:    newExtractionMemo(opts.MemoSize, opts.MemoTTL),
		schema:  schema,
		opts:    opts,
		logger:  logger,
	}, nil
}

// OptionsFromConfig maps the store section of the configuration.
func OptionsFromConfig(cfg *common.Config) Options {
	return Options{
		DefaultPageSize: cfg.Store.DefaultPageSize,
		MemoSize:        cfg.Store.MemoSize,
		MemoTTL:         cfg.Store.MemoTTL,
		Wildcard:        cfg.Origins.Wildcard,
		Unknown:         cfg.Origins.Unknown,
	}
}

// ListRequest selects one page of a category. Page is 1-based.
type ListRequest struct {
	Category string
	Page     int
	PageSize int
	Origin   string // "" or the wildcard disables filtering
}

// ListPage is one page of records plus the filtered total.
type ListPage struct {
	Records  []entity.Record `json:"records"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// List returns records ordered by clean name. Entries that cannot be read
// are reported inline with status "error".
func (s *Store) List(ctx context.Context, req ListRequest) (*ListPage, error) {
	names, err := s.entries(ctx, req.Category)
	if err != nil {
		return nil, err
	}
	if req.Origin != "" && req.Origin != s.opts.Wildcard {
		filtered := names[:0]
		for _, n := range names {
			if naming.Origin(n, s.opts.Unknown) == req.Origin {
				filtered = append(filtered, n)
			}
		}
		names = filtered
	}

	page, size := req.Page, req.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = s.opts.DefaultPageSize
	}
	out := &ListPage{Records: []entity.Record{}, Total: len(names), Page: page, PageSize: size}
	start := (page - 1) * size
	if start >= len(names) {
		return out, nil
	}
	end := min(start+size, len(names))
	for _, n := range names[start:end] {
		out.Records = append(out.Records, s.load(ctx, req.Category, n))
	}
	return out, nil
}

// All returns every record of a category in list order.
func (s *Store) All(ctx context.Context, category string) ([]entity.Record, error) {
	names, err := s.entries(ctx, category)
	if err != nil {
		return nil, err
	}
	out := make([]entity.Record, 0, len(names))
	for _, n := range names {
		out = append(out, s.load(ctx, category, n))
	}
	return out, nil
}

// Count returns the number of document and structured entries.
func (s *Store) Count(ctx context.Context, category string) (int, error) {
	names, err := s.entries(ctx, category)
	return len(names), err
}

// Get reads one entry by exact name.
func (s *Store) Get(ctx context.Context, category, name string) (entity.Record, error) {
	if err := s.mustExist(ctx, category, name); err != nil {
		return entity.Record{}, err
	}
	return s.load(ctx, category, name), nil
}

// Upload is one incoming document.
type Upload struct {
	Name    string
	Content []byte
}

// UploadResult reports the stored name, or the error, of one Upload.
type UploadResult struct {
	Name    string `json:"name"`
	Archivo string `json:"archivo,omitempty"`
	Err     error  `json:"-"`
	Error   string `json:"error,omitempty"`
}

// CreateFromDocument stores a PDF as "[origin] <clean name>". Any tag
// already on the incoming name is dropped.
func (s *Store) CreateFromDocument(ctx context.Context, category, origin, name string, content []byte) (string, error) {
	if err := s.validateOrigin(origin); err != nil {
		return "", err
	}
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	if !constants.IsDocument(base) {
		return "", common.InvalidInput("only .%s documents can be uploaded: %q", constants.ExtDocument, name)
	}
	clean := naming.Clean(base)
	if constants.ExtOf(clean) != constants.ExtDocument || naming.TrimExt(clean) == clean {
		return "", common.InvalidInput("document name %q is empty once its tag is removed", name)
	}
	target := naming.Apply(origin, clean)
	if err := s.backend.Write(ctx, category, target, content); err != nil {
		return "", s.fail("write document", category, target, err)
	}
	common.LoggerFromContext(ctx, s.logger).Info("document stored", "category", category, "archivo", target, "bytes", len(content))
	return target, nil
}

// CreateFromDocuments stores each upload independently; one failure does
// not stop the rest.
func (s *Store) CreateFromDocuments(ctx context.Context, category, origin string, uploads []Upload) []UploadResult {
	results := make([]UploadResult, 0, len(uploads))
	for _, u := range uploads {
		archivo, err := s.CreateFromDocument(ctx, category, origin, u.Name, u.Content)
		res := UploadResult{Name: u.Name, Archivo: archivo, Err: err}
		if err != nil {
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results
}

// CreateStructured stores fields as "[origin] Manual - <id>.json".
func (s *Store) CreateStructured(ctx context.Context, category, origin string, fields entity.Fields) (string, error) {
	if err := s.validateInput(origin, fields); err != nil {
		return "", err
	}
	name := fmt.Sprintf("[%s] Manual - %s.%s", origin, uuid.NewString()[:8], constants.ExtStructured)
	if err := s.writePayload(ctx, category, name, origin, fields); err != nil {
		return "", err
	}
	common.LoggerFromContext(ctx, s.logger).Info("structured record created", "category", category, "archivo", name)
	return name, nil
}

// RenameOrigin retags an entry. The entry is found by exact name, else by
// clean name among the category's entries in list order. Document bytes
// are never changed; a structured entry's "origen" field is updated to the
// new tag.
func (s *Store) RenameOrigin(ctx context.Context, category, name, origin string) (string, error) {
	if err := s.validateOrigin(origin); err != nil {
		return "", err
	}
	names, err := s.entries(ctx, category)
	if err != nil {
		return "", err
	}
	current, ok := resolve(names, name)
	if !ok {
		return "", common.NotFound("entry %q not found in %q", name, category)
	}

	target := naming.Apply(origin, current)
	if target == current {
		return current, nil
	}
	if slices.Contains(names, target) {
		return "", common.InvalidInput("an entry named %q already exists in %q", target, category)
	}
	if err := s.backend.Rename(ctx, category, current, target); err != nil {
		return "", s.fail("rename entry", category, current, err)
	}

	log := common.LoggerFromContext(ctx, s.logger)
	log.Info("origin changed", "category", category, "from", current, "to", target)
	if constants.IsStructured(target) {
		s.syncOrigin(ctx, category, target, origin)
	}
	return target, nil
}

// Delete removes an entry by exact name only.
func (s *Store) Delete(ctx context.Context, category, name string) error {
	if !constants.IsEntry(name) {
		return common.NotFound("entry %q not found in %q", name, category)
	}
	if err := s.backend.Remove(ctx, category, name); err != nil {
		return s.fail("remove entry", category, name, err)
	}
	common.LoggerFromContext(ctx, s.logger).Info("entry deleted", "category", category, "archivo", name)
	return nil
}

// Edit replaces an entry's fields and origin, always writing a structured
// entry. A document-backed entry becomes "[origin] <clean name>.json" and
// the document is removed once the new entry is written.
func (s *Store) Edit(ctx context.Context, category, name string, fields entity.Fields, origin string) (string, error) {
	if err := s.validateInput(origin, fields); err != nil {
		return "", err
	}
	if err := s.mustExist(ctx, category, name); err != nil {
		return "", err
	}

	var target string
	if constants.IsStructured(name) {
		target = naming.Apply(origin, name)
	} else {
		target = naming.Apply(origin, naming.TrimExt(naming.Clean(name))+"."+constants.ExtStructured)
	}
	if target != name {
		taken, err := s.backend.Exists(ctx, category, target)
		if err != nil {
			return "", s.fail("check edit target", category, target, err)
		}
		if taken {
			return "", common.InvalidInput("an entry named %q already exists in %q", target, category)
		}
	}

	if err := s.writePayload(ctx, category, target, origin, fields); err != nil {
		return "", err
	}
	if target != name {
		if err := s.backend.Remove(ctx, category, name); err != nil {
			return "", s.fail("remove edited source", category, name, err)
		}
	}
	common.LoggerFromContext(ctx, s.logger).Info("record edited", "category", category, "from", name, "to", target)
	return target, nil
}

// entries lists document and structured names in list order.
func (s *Store) entries(ctx context.Context, category string) ([]string, error) {
	all, err := s.backend.Names(ctx, category)
	if err != nil {
		return nil, s.fail("list entries", category, "", err)
	}
	names := make([]string, 0, len(all))
	for _, n := range all {
		if constants.IsEntry(n) {
			names = append(names, n)
		}
	}
	naming.Sort(names)
	return names, nil
}

func (s *Store) mustExist(ctx context.Context, category, name string) error {
	if !constants.IsEntry(name) {
		return common.NotFound("entry %q not found in %q", name, category)
	}
	ok, err := s.backend.Exists(ctx, category, name)
	if err != nil {
		return s.fail("lookup entry", category, name, err)
	}
	if !ok {
		return common.NotFound("entry %q not found in %q", name, category)
	}
	return nil
}

// load builds the record for one entry; failures become an error record.
func (s *Store) load(ctx context.Context, category, name string) entity.Record {
	rec := entity.Record{
		Categoria: category,
		Archivo:   name,
		Origen:    naming.Origin(name, s.opts.Unknown),
		Status:    constants.StatusSuccess,
	}
	data, err := s.backend.Read(ctx, category, name)
	if err != nil {
		return s.errorRecord(ctx, rec, err)
	}

	if constants.IsStructured(name) {
		m, err := s.decodePayload(data)
		if err != nil {
			return s.errorRecord(ctx, rec, err)
		}
		rec.Fields = fieldsFromPayload(m)
		if o, ok := m["origen"].(string); ok && o != "" {
			rec.Origen = o
		}
		return rec
	}

	fields, sum, hit := s.memo.lookup(data)
	if !hit {
		fields = s.engine.ExtractDocument(ctx, s.source, data)
		s.memo.store(sum, fields)
	}
	rec.Fields = fields
	return rec
}

func (s *Store) errorRecord(ctx context.Context, rec entity.Record, err error) entity.Record {
	common.LoggerFromContext(ctx, s.logger).Warn("entry unreadable", "category", rec.Categoria, "archivo", rec.Archivo, "error", err)
	rec.Fields = entity.Fields{}
	rec.Status = constants.StatusError
	rec.ErrorMsg = err.Error()
	return rec
}

// validateOrigin also refuses the list wildcard: a record tagged with it
// could never be singled out by the origin filter.
func (s *Store) validateOrigin(origin string) error {
	if err := common.ValidateOriginTag(origin); err != nil {
		return err
	}
	if origin == s.opts.Wildcard {
		return common.InvalidInput("origin %q is reserved for listing every origin", origin)
	}
	return nil
}

func (s *Store) validateInput(origin string, fields entity.Fields) error {
	if err := s.validateOrigin(origin); err != nil {
		return err
	}
	v := common.NewValidator()
	for name, value := range fields.Map() {
		v.Field(name, value, common.MaxLength(maxFieldLength))
	}
	return v.Err()
}

func (s *Store) writePayload(ctx context.Context, category, name, origin string, fields entity.Fields) error {
	data, err := encodePayload(payload{Fields: fields, Categoria: category, Origen: origin})
	if err != nil {
		return common.IOFailure("encode payload", err)
	}
	if err := s.backend.Write(ctx, category, name, data); err != nil {
		return s.fail("write payload", category, name, err)
	}
	return nil
}

// syncOrigin rewrites the "origen" field of a renamed structured entry.
// Failures are logged; the rename itself already happened.
func (s *Store) syncOrigin(ctx context.Context, category, name, origin string) {
	log := common.LoggerFromContext(ctx, s.logger)
	data, err := s.backend.Read(ctx, category, name)
	if err != nil {
		log.Warn("origin sync skipped", "archivo", name, "error", err)
		return
	}
	m, err := s.decodePayload(data)
	if err != nil {
		log.Warn("origin sync skipped", "archivo", name, "error", err)
		return
	}
	if cur, ok := m["origen"]; !ok || cur == origin {
		return
	}
	m["origen"] = origin
	out, err := encodePayload(m)
	if err == nil {
		err = s.backend.Write(ctx, category, name, out)
	}
	if err != nil {
		log.Warn("origin sync failed", "archivo", name, "error", err)
	}
}

// fail maps backend errors onto application errors.
func (s *Store) fail(op, category, name string, err error) error {
	var appErr *common.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, backend.ErrNotExist):
		return common.NotFound("entry %q not found in %q", name, category)
	default:
		return common.IOFailure(op, err)
	}
}

// resolve finds name exactly, else the first entry sharing its clean name.
func resolve(names []string, name string) (string, bool) {
	if slices.Contains(names, name) {
		return name, true
	}
	for _, n := range names {
		if naming.SameEntry(n, name) {
			return n, true
		}
	}
	return "", false
}
