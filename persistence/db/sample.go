package db

import (
	"errors"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mirror520/pullsub/conf"
	"github.com/mirror520/pullsub/keyexpr"
	"github.com/mirror520/pullsub/sample"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

type sampleRepository struct {
	db *gorm.DB
}

func NewSampleRepository(cfg conf.Persistence) (sample.Repository, error) {
	dsn := cfg.Host + "/" + cfg.Name + ".db"
	if cfg.InMem {
		dsn = "file:" + cfg.Name + "?mode=memory&cache=shared"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Sample{}); err != nil {
		return nil, err
	}

	repo := new(sampleRepository)
	repo.db = db
	return repo, nil
}

// Store keeps s unless the stored sample of the same key is newer.
func (repo *sampleRepository) Store(s *sample.Sample) error {
	row := NewSample(s)

	return repo.db.Transaction(func(tx *gorm.DB) error {
		var current *Sample

		err := tx.Take(&current, "path = ?", row.Path).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			return tx.Create(row).Error
		}

		if current.Timestamp >= row.Timestamp {
			return nil
		}

		row.CreatedAt = current.CreatedAt
		return tx.Save(row).Error
	})
}

func (repo *sampleRepository) Find(key keyexpr.KeyExpr) (*sample.Sample, error) {
	var s *Sample

	err := repo.db.Take(&s, "path = ?", key.Path()).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sample.ErrSampleNotFound
		}

		return nil, err
	}

	return s.reconstitute()
}

func (repo *sampleRepository) Query(selector keyexpr.KeyExpr) ([]*sample.Sample, error) {
	var rows []*Sample

	prefix := likeEscaper.Replace(selector.Prefix()) + "%"

	err := repo.db.
		Where(`path LIKE ? ESCAPE '\'`, prefix).
		Order("path").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	samples := make([]*sample.Sample, 0, len(rows))
	for _, row := range rows {
		s, err := row.reconstitute()
		if err != nil {
			return nil, err
		}

		if selector.Intersects(s.Key) {
			samples = append(samples, s)
		}
	}

	return samples, nil
}

func (repo *sampleRepository) Close() error {
	sqlDB, err := repo.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
