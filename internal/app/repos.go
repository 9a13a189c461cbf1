package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/lifeos-backend/internal/platform/logger"
	"github.com/yungbote/lifeos-backend/internal/repos"
)

type Repos struct {
	User      repos.UserRepo
	Video     repos.VideoRepo
	Highlight repos.HighlightRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:      repos.NewUserRepo(db, log),
		Video:     repos.NewVideoRepo(db, log),
		Highlight: repos.NewHighlightRepo(db, log),
	}
}
