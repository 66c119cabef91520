// Package relational implements the node store contract on a flat
// relational schema through GORM. SQLite is the embedded default;
// Postgres is selected by driver config, mirroring the rest of the
// backend's database bootstrap.
package relational

import (
	"context"
	"fmt"
	stdlog "log"
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/toolbench-backend/internal/domain/node"
	"github.com/yungbote/toolbench-backend/internal/platform/envutil"
	"github.com/yungbote/toolbench-backend/internal/platform/logger"
	"github.com/yungbote/toolbench-backend/internal/platform/storeerr"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
}

func ConfigFromEnv() Config {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		envutil.Str("POSTGRES_USER", "postgres"),
		envutil.Str("POSTGRES_PASSWORD", ""),
		envutil.Str("POSTGRES_HOST", "localhost"),
		envutil.Str("POSTGRES_PORT", "5432"),
		envutil.Str("POSTGRES_NAME", "toolbench"),
	)
	return Config{
		Driver:      envutil.Str("RELATIONAL_DRIVER", DriverSQLite),
		SQLitePath:  envutil.Str("SQLITE_PATH", "toolbench.db"),
		PostgresDSN: dsn,
	}
}

// Engine is the relational-flat storage engine.
type Engine struct {
	cfg Config
	db  *gorm.DB
	log *logger.Logger
}

func New(cfg Config, baseLog *logger.Logger) *Engine {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Engine{cfg: cfg, log: baseLog.With("engine", "Relational")}
}

// NewWithDB wraps an externally opened connection; tests use this with
// in-memory SQLite.
func NewWithDB(db *gorm.DB, baseLog *logger.Logger) *Engine {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Engine{db: db, log: baseLog.With("engine", "Relational")}
}

func (e *Engine) Init(ctx context.Context) error {
	if e.db == nil {
		gormLog := gormLogger.New(
			stdlog.New(os.Stdout, "\r\n", stdlog.LstdFlags),
			gormLogger.Config{
				SlowThreshold:             1 * time.Second,
				LogLevel:                  gormLogger.Warn,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		)

		var dialector gorm.Dialector
		switch e.cfg.Driver {
		case DriverPostgres:
			dialector = postgres.Open(e.cfg.PostgresDSN)
		case DriverSQLite, "":
			dialector = sqlite.Open(e.cfg.SQLitePath)
		default:
			return fmt.Errorf("relational: unknown driver %q", e.cfg.Driver)
		}

		db, err := gorm.Open(dialector, &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
			Logger:                                   gormLog,
		})
		if err != nil {
			return storeerr.Engine(fmt.Errorf("relational: open %s: %w", e.cfg.Driver, err))
		}
		if e.cfg.Driver != DriverPostgres {
			// SQLite allows one writer; a single pooled connection also
			// keeps in-memory databases alive across calls.
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.SetMaxOpenConns(1)
				sqlDB.SetMaxIdleConns(1)
			}
		}
		e.db = db
	}

	if err := e.db.WithContext(ctx).AutoMigrate(
		&NodeRow{},
		&FieldRow{},
		&SupertagRow{},
		&PropertyRow{},
		&MembershipRow{},
	); err != nil {
		return storeerr.Engine(fmt.Errorf("relational: migrate: %w", err))
	}
	return nil
}

func (e *Engine) Close(ctx context.Context) error {
	if e.db == nil {
		return nil
	}
	sqlDB, err := e.db.DB()
	if err != nil {
		return storeerr.Engine(err)
	}
	e.db = nil
	return sqlDB.Close()
}

// Save is a no-op: GORM commits every write synchronously.
func (e *Engine) Save(ctx context.Context) error { return nil }

// --- nodes ---

func (e *Engine) CreateNode(ctx context.Context, opts node.CreateNodeOptions) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	row := NodeRow{
		ID:        id,
		Content:   opts.Content,
		SystemID:  opts.SystemID,
		OwnerID:   opts.OwnerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if opts.Content != nil {
		row.ContentPlain = node.PlainContent(*opts.Content)
	}

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tag *SupertagRow
		if opts.SupertagID != nil && *opts.SupertagID != "" {
			found, err := findSupertagRow(ctx, tx, *opts.SupertagID)
			if err != nil {
				return err
			}
			if found == nil {
				return storeerr.SupertagNotFound(*opts.SupertagID)
			}
			tag = found
		}

		if opts.SystemID != nil {
			var count int64
			if err := tx.Model(&NodeRow{}).Where("system_id = ?", *opts.SystemID).Count(&count).Error; err != nil {
				return storeerr.Engine(err)
			}
			if count > 0 {
				return storeerr.Conflict("node systemId", *opts.SystemID)
			}
		}

		if err := tx.Create(&row).Error; err != nil {
			return storeerr.Engine(err)
		}

		if tag != nil {
			membership := MembershipRow{
				ID:         uuid.NewString(),
				NodeID:     id,
				SupertagID: tag.ID,
				SortOrder:  0,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := tx.Create(&membership).Error; err != nil {
				return storeerr.Engine(err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (e *Engine) FindNodeByID(ctx context.Context, id string) (*node.NodeRecord, error) {
	var rows []NodeRow
	if err := e.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, storeerr.Engine(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	rec := toNodeRecord(rows[0])
	return &rec, nil
}

func (e *Engine) FindNodeBySystemID(ctx context.Context, systemID string) (*node.NodeRecord, error) {
	var rows []NodeRow
	if err := e.db.WithContext(ctx).Where("system_id = ?", systemID).Limit(1).Find(&rows).Error; err != nil {
		return nil, storeerr.Engine(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	rec := toNodeRecord(rows[0])
	return &rec, nil
}

func (e *Engine) UpdateNodeContent(ctx context.Context, id, content string) error {
	res := e.db.WithContext(ctx).Model(&NodeRow{}).Where("id = ?", id).Updates(map[string]any{
		"content":       content,
		"content_plain": node.PlainContent(content),
		"updated_at":    time.Now().UTC(),
	})
	if res.Error != nil {
		return storeerr.Engine(res.Error)
	}
	if res.RowsAffected == 0 {
		return storeerr.NotFound("node", id)
	}
	return nil
}

func (e *Engine) DeleteNode(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res := e.db.WithContext(ctx).Model(&NodeRow{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]any{"deleted_at": now, "updated_at": now})
	if res.Error != nil {
		return storeerr.Engine(res.Error)
	}
	return nil
}

func (e *Engine) PurgeNode(ctx context.Context, id string) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("node_id = ?", id).Delete(&PropertyRow{}).Error; err != nil {
			return storeerr.Engine(err)
		}
		if err := tx.Where("node_id = ?", id).Delete(&MembershipRow{}).Error; err != nil {
			return storeerr.Engine(err)
		}
		if err := tx.Where("id = ?", id).Delete(&NodeRow{}).Error; err != nil {
			return storeerr.Engine(err)
		}
		return nil
	})
}

// --- fields and supertags ---

func (e *Engine) CreateField(ctx context.Context, rec node.FieldRecord) (string, error) {
	if !node.ValidFieldType(rec.Type) {
		return "", fmt.Errorf("relational: invalid field type %q", rec.Type)
	}
	var count int64
	if err := e.db.WithContext(ctx).Model(&FieldRow{}).Where("system_id = ?", rec.SystemID).Count(&count).Error; err != nil {
		return "", storeerr.Engine(err)
	}
	if count > 0 {
		return "", storeerr.Conflict("field", rec.SystemID)
	}
	now := time.Now().UTC()
	row := FieldRow{
		ID:        uuid.NewString(),
		SystemID:  rec.SystemID,
		Name:      rec.Name,
		Type:      string(rec.Type),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", storeerr.Engine(err)
	}
	return row.ID, nil
}

func (e *Engine) FindFieldBySystemID(ctx context.Context, systemID string) (*node.FieldRecord, error) {
	var rows []FieldRow
	if err := e.db.WithContext(ctx).Where("system_id = ?", systemID).Limit(1).Find(&rows).Error; err != nil {
		return nil, storeerr.Engine(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &node.FieldRecord{
		ID:        rows[0].ID,
		SystemID:  rows[0].SystemID,
		Name:      rows[0].Name,
		Type:      node.FieldType(rows[0].Type),
		CreatedAt: rows[0].CreatedAt,
		UpdatedAt: rows[0].UpdatedAt,
	}, nil
}

func (e *Engine) CreateSupertag(ctx context.Context, rec node.SupertagRecord) (string, error) {
	var count int64
	if err := e.db.WithContext(ctx).Model(&SupertagRow{}).Where("system_id = ?", rec.SystemID).Count(&count).Error; err != nil {
		return "", storeerr.Engine(err)
	}
	if count > 0 {
		return "", storeerr.Conflict("supertag", rec.SystemID)
	}
	schema, err := node.EncodeFieldSchema(rec.FieldSchema)
	if err != nil {
		return "", fmt.Errorf("relational: encode field schema: %w", err)
	}
	now := time.Now().UTC()
	row := SupertagRow{
		ID:              uuid.NewString(),
		SystemID:        rec.SystemID,
		Name:            rec.Name,
		ExtendsSystemID: rec.ExtendsSystemID,
		FieldSchema:     datatypes.JSON(schema),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", storeerr.Engine(err)
	}
	return row.ID, nil
}

func (e *Engine) FindSupertagBySystemID(ctx context.Context, systemID string) (*node.SupertagRecord, error) {
	row, err := findSupertagRow(ctx, e.db.WithContext(ctx), systemID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return toSupertagRecord(*row)
}

func (e *Engine) ListSupertags(ctx context.Context) ([]node.SupertagRecord, error) {
	var rows []SupertagRow
	if err := e.db.WithContext(ctx).Order("system_id").Find(&rows).Error; err != nil {
		return nil, storeerr.Engine(err)
	}
	out := make([]node.SupertagRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := toSupertagRecord(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

// --- properties ---

func (e *Engine) ListProperties(ctx context.Context, nodeID string) ([]node.PropertyRecord, error) {
	type joined struct {
		PropertyRow
		FieldSystemID string
		FieldName     string
		FieldType     string
	}
	var rows []joined
	err := e.db.WithContext(ctx).
		Table("properties").
		Select("properties.*, fields.system_id AS field_system_id, fields.name AS field_name, fields.value_type AS field_type").
		Joins("JOIN fields ON fields.id = properties.field_id").
		Where("properties.node_id = ?", nodeID).
		Order("properties.field_id, properties.sort_order").
		Scan(&rows).Error
	if err != nil {
		return nil, storeerr.Engine(err)
	}

	out := make([]node.PropertyRecord, 0, len(rows))
	for _, row := range rows {
		val, err := node.DecodeValue(node.FieldType(row.FieldType), []byte(row.Value))
		if err != nil {
			return nil, fmt.Errorf("relational: decode property %s/%s: %w", nodeID, row.FieldSystemID, err)
		}
		out = append(out, node.PropertyRecord{
			NodeID:        row.NodeID,
			FieldID:       row.FieldID,
			FieldSystemID: row.FieldSystemID,
			FieldName:     row.FieldName,
			Value:         val,
			Order:         row.SortOrder,
			CreatedAt:     row.CreatedAt,
			UpdatedAt:     row.UpdatedAt,
		})
	}
	return out, nil
}

func (e *Engine) ReplaceProperty(ctx context.Context, nodeID, fieldSystemID string, value node.Value) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		field, err := requireField(tx, fieldSystemID)
		if err != nil {
			return err
		}
		if err := requireNode(tx, nodeID); err != nil {
			return err
		}
		data, err := node.EncodeValue(value)
		if err != nil {
			return fmt.Errorf("relational: encode value: %w", err)
		}
		if err := tx.Where("node_id = ? AND field_id = ?", nodeID, field.ID).Delete(&PropertyRow{}).Error; err != nil {
			return storeerr.Engine(err)
		}
		now := time.Now().UTC()
		row := PropertyRow{
			ID:        uuid.NewString(),
			NodeID:    nodeID,
			FieldID:   field.ID,
			Value:     datatypes.JSON(data),
			SortOrder: 0,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&row).Error; err != nil {
			return storeerr.Engine(err)
		}
		return nil
	})
}

func (e *Engine) AppendProperty(ctx context.Context, nodeID, fieldSystemID string, value node.Value) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		field, err := requireField(tx, fieldSystemID)
		if err != nil {
			return err
		}
		if err := requireNode(tx, nodeID); err != nil {
			return err
		}
		data, err := node.EncodeValue(value)
		if err != nil {
			return fmt.Errorf("relational: encode value: %w", err)
		}

		var next *int
		row := tx.Model(&PropertyRow{}).
			Where("node_id = ? AND field_id = ?", nodeID, field.ID).
			Select("MAX(sort_order) + 1")
		if err := row.Scan(&next).Error; err != nil {
			return storeerr.Engine(err)
		}
		order := 0
		if next != nil {
			order = *next
		}

		now := time.Now().UTC()
		prop := PropertyRow{
			ID:        uuid.NewString(),
			NodeID:    nodeID,
			FieldID:   field.ID,
			Value:     datatypes.JSON(data),
			SortOrder: order,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&prop).Error; err != nil {
			return storeerr.Engine(err)
		}
		return nil
	})
}

func (e *Engine) ClearProperty(ctx context.Context, nodeID, fieldSystemID string) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		field, err := requireField(tx, fieldSystemID)
		if err != nil {
			return err
		}
		if err := tx.Where("node_id = ? AND field_id = ?", nodeID, field.ID).Delete(&PropertyRow{}).Error; err != nil {
			return storeerr.Engine(err)
		}
		return nil
	})
}

// --- supertag membership ---

func (e *Engine) AddSupertag(ctx context.Context, nodeID, supertagSystemID string) (bool, error) {
	added := false
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tag, err := findSupertagRow(ctx, tx, supertagSystemID)
		if err != nil {
			return err
		}
		if tag == nil {
			return storeerr.SupertagNotFound(supertagSystemID)
		}
		if err := requireNode(tx, nodeID); err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&MembershipRow{}).Where("node_id = ? AND supertag_id = ?", nodeID, tag.ID).Count(&count).Error; err != nil {
			return storeerr.Engine(err)
		}
		if count > 0 {
			return nil
		}

		var existing int64
		if err := tx.Model(&MembershipRow{}).Where("node_id = ?", nodeID).Count(&existing).Error; err != nil {
			return storeerr.Engine(err)
		}

		now := time.Now().UTC()
		row := MembershipRow{
			ID:         uuid.NewString(),
			NodeID:     nodeID,
			SupertagID: tag.ID,
			SortOrder:  int(existing),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.Create(&row).Error; err != nil {
			return storeerr.Engine(err)
		}
		added = true
		return nil
	})
	return added, err
}

func (e *Engine) RemoveSupertag(ctx context.Context, nodeID, supertagSystemID string) (bool, error) {
	removed := false
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tag, err := findSupertagRow(ctx, tx, supertagSystemID)
		if err != nil {
			return err
		}
		if tag == nil {
			return storeerr.SupertagNotFound(supertagSystemID)
		}
		res := tx.Where("node_id = ? AND supertag_id = ?", nodeID, tag.ID).Delete(&MembershipRow{})
		if res.Error != nil {
			return storeerr.Engine(res.Error)
		}
		removed = res.RowsAffected > 0
		return nil
	})
	return removed, err
}

func (e *Engine) NodeSupertags(ctx context.Context, nodeID string) ([]node.MembershipRecord, error) {
	type joined struct {
		MembershipRow
		TagSystemID string
		TagName     string
	}
	var rows []joined
	err := e.db.WithContext(ctx).
		Table("node_supertags").
		Select("node_supertags.*, supertags.system_id AS tag_system_id, supertags.name AS tag_name").
		Joins("JOIN supertags ON supertags.id = node_supertags.supertag_id").
		Where("node_supertags.node_id = ?", nodeID).
		Order("node_supertags.sort_order").
		Scan(&rows).Error
	if err != nil {
		return nil, storeerr.Engine(err)
	}

	out := make([]node.MembershipRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, node.MembershipRecord{
			NodeID:     row.NodeID,
			SupertagID: row.TagSystemID,
			Content:    row.TagName,
			Order:      row.SortOrder,
			CreatedAt:  row.CreatedAt,
			UpdatedAt:  row.UpdatedAt,
		})
	}
	return out, nil
}

func (e *Engine) NodesBySupertags(ctx context.Context, supertagSystemIDs []string, matchAll bool) ([]node.NodeRecord, error) {
	if len(supertagSystemIDs) == 0 {
		return []node.NodeRecord{}, nil
	}

	q := e.db.WithContext(ctx).
		Table("nodes").
		Select("nodes.*").
		Joins("JOIN node_supertags ON node_supertags.node_id = nodes.id").
		Joins("JOIN supertags ON supertags.id = node_supertags.supertag_id").
		Where("supertags.system_id IN ?", supertagSystemIDs).
		Where("nodes.deleted_at IS NULL").
		Group("nodes.id")
	if matchAll {
		q = q.Having("COUNT(DISTINCT supertags.system_id) = ?", len(supertagSystemIDs))
	}

	var rows []NodeRow
	if err := q.Order("nodes.id").Scan(&rows).Error; err != nil {
		return nil, storeerr.Engine(err)
	}

	out := make([]node.NodeRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, toNodeRecord(row))
	}
	return out, nil
}

func (e *Engine) ActiveNodes(ctx context.Context) ([]node.NodeRecord, error) {
	var rows []NodeRow
	if err := e.db.WithContext(ctx).Where("deleted_at IS NULL").Order("id").Find(&rows).Error; err != nil {
		return nil, storeerr.Engine(err)
	}
	out := make([]node.NodeRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, toNodeRecord(row))
	}
	return out, nil
}

// --- helpers ---

func toNodeRecord(row NodeRow) node.NodeRecord {
	return node.NodeRecord{
		ID:           row.ID,
		Content:      row.Content,
		ContentPlain: row.ContentPlain,
		SystemID:     row.SystemID,
		OwnerID:      row.OwnerID,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
		DeletedAt:    row.DeletedAt,
	}
}

func toSupertagRecord(row SupertagRow) (*node.SupertagRecord, error) {
	schema, err := node.DecodeFieldSchema([]byte(row.FieldSchema))
	if err != nil {
		return nil, fmt.Errorf("relational: supertag %s: %w", row.SystemID, err)
	}
	return &node.SupertagRecord{
		ID:              row.ID,
		SystemID:        row.SystemID,
		Name:            row.Name,
		ExtendsSystemID: row.ExtendsSystemID,
		FieldSchema:     schema,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}, nil
}

func findSupertagRow(ctx context.Context, tx *gorm.DB, systemID string) (*SupertagRow, error) {
	var rows []SupertagRow
	if err := tx.Where("system_id = ?", systemID).Limit(1).Find(&rows).Error; err != nil {
		return nil, storeerr.Engine(err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func requireField(tx *gorm.DB, systemID string) (*FieldRow, error) {
	var rows []FieldRow
	if err := tx.Where("system_id = ?", systemID).Limit(1).Find(&rows).Error; err != nil {
		return nil, storeerr.Engine(err)
	}
	if len(rows) == 0 {
		return nil, storeerr.FieldNotFound(systemID)
	}
	return &rows[0], nil
}

func requireNode(tx *gorm.DB, nodeID string) error {
	var count int64
	if err := tx.Model(&NodeRow{}).Where("id = ?", nodeID).Count(&count).Error; err != nil {
		return storeerr.Engine(err)
	}
	if count == 0 {
		return storeerr.NotFound("node", nodeID)
	}
	return nil
}
