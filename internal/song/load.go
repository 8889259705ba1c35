package song

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

//go:embed songs.json
var embeddedSongs []byte

// Embedded loads the corpus bundled with the binary.
func Embedded() (*Catalog, error) {
	return parse(embeddedSongs)
}

// LoadFile loads a corpus from a JSON file on disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read songs file: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Catalog, error) {
	var songs []Song
	if err := json.Unmarshal(data, &songs); err != nil {
		return nil, fmt.Errorf("parse songs: %w", err)
	}
	return NewCatalog(songs), nil
}

type record struct {
	ID     uint `gorm:"primaryKey"`
	Name   string
	Movie  string
	Lyrics string
	Link   string
}

func (record) TableName() string { return "songs" }

// LoadDatabase loads the corpus from a Postgres "songs" table.
func LoadDatabase(dsn string) (*Catalog, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open songs database: %w", err)
	}

	var records []record
	if err := db.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("query songs: %w", err)
	}

	songs := make([]Song, 0, len(records))
	for _, r := range records {
		songs = append(songs, Song{Name: r.Name, Movie: r.Movie, Lyrics: r.Lyrics, Link: r.Link})
	}
	return NewCatalog(songs), nil
}
