package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logger is replaced by logInit; the no-op default keeps tests quiet.
var logger = zap.NewNop().Sugar()

func logInit(verbose bool) error {

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	zapLogger, err := cfg.Build()
	if err != nil {
		return err
	}
	logger = zapLogger.Sugar()

	// no condition here, as you'll only see the message if
	// Verbose logging really is enabled!
	logger.Debugf("Verbose logging enabled")
	return nil
}

func logOutcome(log *zap.SugaredLogger, out Outcome) {
	if out.Err != nil {
		log.Errorw("An unexpected error occurred",
			"email_id", out.EmailID,
			"retry_later", out.Retry,
			"error", out.Err,
		)
		return
	}
	log.Infow("Email parsed",
		"email_id", out.EmailID,
		"attachments", len(out.Result.Attachments),
		"message_id", out.MessageID,
	)
}
