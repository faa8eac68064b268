package handoff

import "go.opentelemetry.io/contrib/bridges/otelslog"

const scopeName = "github.com/koscakluka/ema-realtime/core/handoff"

var logger = otelslog.NewLogger(scopeName)
