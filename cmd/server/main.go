package main

import (
	"context"

	"lekalo/internal/api"
	"lekalo/internal/config"
	"lekalo/internal/fieldtype"
	"lekalo/internal/logs"
	"lekalo/internal/pg"
	"lekalo/internal/refresolve"
	"lekalo/internal/registrar"
	"lekalo/internal/seed"
	"lekalo/internal/store"
)

// allowAll — явная dev-политика доступа. Прод-хост обязан подключить
// настоящий checker; молчаливого permissive-дефолта в движке нет.
type allowAll struct{}

func (allowAll) CheckAccess(ctx context.Context, tenantID, projectID, entityType, operation, principal string) (bool, error) {
	return true, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logs.Logger.Fatalf("config: %v", err)
	}
	logs.Init(logs.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})

	if cfg.Database.DSN == "" {
		logs.Logger.Fatal("database.dsn is required")
	}
	db, err := pg.Open(cfg.Database.DSN)
	if err != nil {
		logs.Logger.Fatalf("postgres: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if cfg.Database.AutoMigrate {
		if err := store.Migrate(ctx, db); err != nil {
			logs.Logger.Fatalf("migrate: %v", err)
		}
	}

	// набор типов полей сидится один раз на старте процесса;
	// hostspecific-плагины добавляются здесь же
	types := fieldtype.NewDefaultRegistry()
	st := store.New(db, types)
	resolver := refresolve.New(st, st)
	reg := registrar.New(st)

	// seed-шаблоны (опционально)
	if cfg.Seed.Dir != "" && cfg.Seed.Tenant != "" {
		specs, err := seed.LoadDir(cfg.Seed.Dir)
		if err != nil {
			logs.Logger.Fatalf("seed load: %v", err)
		}
		seed.Apply(ctx, st, cfg.Seed.Tenant, specs)
	}

	// поднимаем дескрипторы сохранённых шаблонов
	descriptors := map[string]registrar.TypeDescriptor{}
	if err := reg.RegisterEntityTypes(ctx, descriptors); err != nil {
		logs.Logger.Fatalf("register entity types: %v", err)
	}
	logs.Logger.Infof("registered %d dynamic entity types", len(descriptors))

	a := &api.API{
		Store:     st,
		Resolver:  resolver,
		Registrar: reg,
		Access:    allowAll{},
	}
	logs.Logger.Warn("access policy: allow-all (dev); wire a real AccessChecker in production")

	addr := cfg.Server.Address + ":" + cfg.Server.HTTPPort
	logs.Logger.Infof("lekalo listening on %s", addr)
	if err := api.RunServer(addr, a); err != nil {
		logs.Logger.Fatalf("http server: %v", err)
	}
}
