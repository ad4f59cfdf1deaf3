package bootstrap

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wolfman30/bakame-ivr/internal/archive"
	appconfig "github.com/wolfman30/bakame-ivr/internal/config"
	"github.com/wolfman30/bakame-ivr/pkg/logging"
)

// BuildCallArchiver returns nil when ARCHIVE_BUCKET is unset.
func BuildCallArchiver(awsCfg aws.Config, cfg *appconfig.Config, logger *logging.Logger) *archive.CallArchiver {
	if cfg == nil || strings.TrimSpace(cfg.ArchiveBucket) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// LocalStack serves buckets by path, not virtual host.
		if cfg.AWSEndpointOverride != "" {
			o.UsePathStyle = true
		}
	})
	logger.Info("call archive enabled", "bucket", cfg.ArchiveBucket)
	return archive.NewCallArchiver(archive.NewStore(client, cfg.ArchiveBucket, logger), logger)
}
