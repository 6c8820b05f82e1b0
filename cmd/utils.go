package cmd

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"pneumo-backend/internal/core"
	"pneumo-backend/internal/database"

	"github.com/joho/godotenv"
	ort "github.com/yalue/onnxruntime_go"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	err := godotenv.Load(configPath)
	if err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

func CreateDatabase(root string) *gorm.DB {
	path := filepath.Join(root, "db", "pneumo-backend.db")
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.GetMigrator(db).Migrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	return db
}

// InitOnnxRuntime points the ONNX Runtime bindings at the shared library and
// initializes the environment. The returned func tears it down.
func InitOnnxRuntime(dylib string) func() {
	if dylib == "" {
		log.Fatalf("ONNX_RUNTIME_DYLIB must be set")
	}
	ort.SetSharedLibraryPath(dylib)
	if err := ort.InitializeEnvironment(); err != nil {
		log.Fatalf("could not init ONNX Runtime: %v", err)
	}
	return func() {
		if err := ort.DestroyEnvironment(); err != nil {
			log.Fatalf("error destroying onnx env: %v", err)
		}
	}
}

// LoadEnsemble reads the model manifest and loads every declared model.
func LoadEnsemble(manifestPath string) (*core.Manifest, []core.Segmenter) {
	manifest, err := core.LoadManifest(manifestPath)
	if err != nil {
		log.Fatalf("error loading model manifest: %v", err)
	}

	models, err := manifest.LoadSegmenters(core.NewSegmenterLoaders())
	if err != nil {
		log.Fatalf("error loading segmentation models: %v", err)
	}
	return manifest, models
}
