package daemon

import (
	"fmt"
	"path/filepath"

	"github.com/mahyarmirrashed/wallrot/internal/config"
	"github.com/mahyarmirrashed/wallrot/internal/utils"
)

func notifyRotation(enabled bool, sourceName, input string) {
	utils.SendNotification(enabled, config.AppName, fmt.Sprintf("%s: %s", sourceName, filepath.Base(input)))
}
