package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type lineWriter struct {
	lines []string
}

func (w *lineWriter) Printf(format string, args ...interface{}) {
	w.lines = append(w.lines, fmt.Sprintf(format, args...))
}

func TestLogger_SkipsRecordNotFound(t *testing.T) {
	w := &lineWriter{}
	l := newLogger(w, logger.Warn)
	sql := func() (string, int64) { return "SELECT * FROM accounts WHERE id = 'x'", 0 }

	l.Trace(context.Background(), time.Now(), sql, gorm.ErrRecordNotFound)
	assert.Empty(t, w.lines)

	l.Trace(context.Background(), time.Now(), sql, errors.New("disk I/O error"))
	if assert.Len(t, w.lines, 1) {
		assert.True(t, strings.Contains(w.lines[0], "disk I/O error"))
	}
}
