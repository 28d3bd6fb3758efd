// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"net/http"
	"sync"
	"time"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/whitaker-io/sentrytx"
)

// admin is sentryd's fiber-based admin server: health, a hot reload of
// the rules file, and a phase-by-phase rule count for operational
// visibility.
type admin struct {
	app       *fiber.App
	log       *logrus.Logger
	rulesPath string
	rebuild   func() (*sentrytx.Engine, error)

	mu      sync.RWMutex
	engine  *sentrytx.Engine
	started time.Time
}

// newAdmin builds the admin server around an already-loaded engine.
// rebuild must construct and fully load a fresh Engine from the same
// configuration and rules file sentryd started with; /reload calls it and
// only swaps the live engine in if it returns without error, so a broken
// rules file edit never takes down a running server: a reload either
// fully replaces the running schedule or changes nothing.
func newAdmin(e *sentrytx.Engine, log *logrus.Logger, rulesPath string, rebuild func() (*sentrytx.Engine, error)) *admin {
	a := &admin{
		app:       fiber.New(),
		log:       log,
		rulesPath: rulesPath,
		rebuild:   rebuild,
		engine:    e,
		started:   time.Now(),
	}
	a.app.Use(recover.New())

	a.app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status": "ok",
			"uptime": time.Since(a.started).String(),
		})
	})

	a.app.Get("/stats", func(c *fiber.Ctx) error {
		a.mu.RLock()
		defer a.mu.RUnlock()
		counts := map[string]int{}
		for _, p := range sentrytx.Phases() {
			counts[p.String()] = len(a.engine.Rules(p))
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"rules_file": a.rulesPath,
			"phases":     counts,
		})
	})

	a.app.Post("/reload", func(c *fiber.Ctx) error {
		next, err := a.rebuild()
		if err != nil {
			a.log.WithError(err).Error("rules reload failed")
			return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
		}
		a.mu.Lock()
		a.engine = next
		a.mu.Unlock()
		a.log.Info("rules reloaded")
		return c.Status(http.StatusOK).JSON(fiber.Map{"status": "reloaded"})
	})

	return a
}

func (a *admin) Run(addr string) error {
	a.log.WithField("addr", addr).Info("admin server listening")
	return a.app.Listen(addr)
}
