package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/eric2788/framestudio/utils"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
	"golang.org/x/crypto/bcrypt"
)

// all config will be loaded from environment variables.
// the returned value is the session shared by every service through fx,
// nothing reads settings from package globals.
type Config struct {
	Port string

	WorkspaceDir     string
	MediaRoot        string
	AutoClearOnClose bool
	MaxFolderFiles   int

	Codec           string
	ImageExtensions []string
	FrameDelay      time.Duration

	ThumbnailSize int
	ThumbnailTTL  time.Duration

	CopyBufferSize int

	Username     string
	PasswordHash string
	JwtSecret    string
	LinkTTL      time.Duration
}

func provider() (*Config, error) {
	if os.Getenv("DEBUG") == "true" {
		logrus.SetLevel(logrus.DebugLevel)
	}

	password := os.Getenv("PASSWORD")
	username := os.Getenv("USERNAME")

	var passwordHash []byte
	var err error

	if password != "" && username != "" {
		passwordHash, err = bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	} else {
		passwordHash, err = []byte{}, nil
	}

	if err != nil {
		return nil, err
	}

	return &Config{
		Port:             utils.EmptyOrElse(os.Getenv("PORT"), "8080"),
		WorkspaceDir:     utils.EmptyOrElse(os.Getenv("WORKSPACE_DIR"), filepath.Join(os.TempDir(), "framestudio")),
		MediaRoot:        os.Getenv("MEDIA_ROOT"),
		AutoClearOnClose: os.Getenv("AUTO_CLEAR_ON_CLOSE") == "true",
		MaxFolderFiles:   utils.MustAtoi(utils.EmptyOrElse(os.Getenv("MAX_FOLDER_FILES"), "200")),
		Codec:            strings.ToLower(utils.EmptyOrElse(os.Getenv("CODEC"), "gif")),
		ImageExtensions:  utils.SplitList(utils.EmptyOrElse(os.Getenv("IMAGE_EXTENSIONS"), ".png,.jpg,.jpeg,.bmp,.gif,.webp")),
		FrameDelay:       time.Duration(utils.MustAtoi(utils.EmptyOrElse(os.Getenv("FRAME_DELAY_MS"), "100"))) * time.Millisecond,
		ThumbnailSize:    utils.MustAtoi(utils.EmptyOrElse(os.Getenv("THUMBNAIL_SIZE"), "160")),
		ThumbnailTTL:     time.Duration(utils.MustAtoi(utils.EmptyOrElse(os.Getenv("THUMBNAIL_TTL_MINUTES"), "30"))) * time.Minute,
		CopyBufferSize:   utils.MustAtoi(utils.EmptyOrElse(os.Getenv("COPY_BUFFER_SIZE"), "262144")),
		Username:         username,
		PasswordHash:     string(passwordHash),
		JwtSecret:        utils.EmptyOrElse(os.Getenv("JWT_SECRET"), "framestudio_secret"),
		LinkTTL:          time.Duration(utils.MustAtoi(utils.EmptyOrElse(os.Getenv("LINK_TTL_MINUTES"), "60"))) * time.Minute,
	}, nil
}

// Default returns the configuration used when no environment is set.
// It is what the command line tool and most tests start from.
func Default() *Config {
	cfg, err := provider()
	if err != nil {
		panic(err)
	}
	return cfg
}

var Module = fx.Module("config", fx.Provide(provider))
