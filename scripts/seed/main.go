package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/GonzaJCalderon/EatAndRun-Back/internal/app"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/auth"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/clock"
	"github.com/GonzaJCalderon/EatAndRun-Back/internal/platform/db"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx := context.Background()

	if err := db.Migrate(cfg.PGDSN, app.NewLogger(cfg)); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: 2})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	clk, err := cfg.Clock()
	if err != nil {
		log.Fatalf("clock: %v", err)
	}

	err = db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		fmt.Println("→ Seeding prices...")
		if err := seedPrices(ctx, tx); err != nil {
			return fmt.Errorf("prices: %w", err)
		}
		fmt.Println("→ Seeding tartas...")
		if err := seedTartas(ctx, tx); err != nil {
			return fmt.Errorf("tartas: %w", err)
		}
		fmt.Println("→ Seeding menu...")
		if err := seedMenu(ctx, tx); err != nil {
			return fmt.Errorf("menu: %w", err)
		}
		fmt.Println("→ Seeding week...")
		return seedWeek(ctx, tx, clk)
	})
	if err != nil {
		log.Fatalf("seed: %v", err)
	}

	issuer := auth.NewIssuer(cfg.JWTSecret, 7*24*time.Hour)
	for _, u := range []struct {
		id   int64
		role auth.Role
	}{{1, auth.RoleAdmin}, {2, auth.RoleUsuario}, {3, auth.RoleEmpresa}, {4, auth.RoleDelivery}} {
		token, err := issuer.Issue(u.id, u.role)
		if err != nil {
			log.Fatalf("issue token: %v", err)
		}
		fmt.Printf("%-9s user=%d token=%s\n", u.role, u.id, token)
	}
	fmt.Println("✓ Seed complete")
}

func seedPrices(ctx context.Context, tx pgx.Tx) error {
	raw, err := json.Marshal(map[string]any{
		"plato":               5000,
		"envio":               800,
		"postre":              "1500",
		"ensalada":            1200,
		"proteina":            2000,
		"descuento_por_plato": 100,
		"umbral_descuento":    5,
	})
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `INSERT INTO configuraciones (clave, valor) VALUES ('precios', $1)
		ON CONFLICT (clave) DO UPDATE SET valor = EXCLUDED.valor`, raw)
	return err
}

func seedTartas(ctx context.Context, tx pgx.Tx) error {
	tartas := []struct {
		key, name, price string
	}{
		{"jyq", "Tarta de jamón y queso", "7000"},
		{"pascualina", "Pascualina", "6500"},
		{"calabaza", "Tarta de calabaza", "6800"},
	}
	for _, t := range tartas {
		if _, err := tx.Exec(ctx, `INSERT INTO tartas ("key", nombre, precio) VALUES ($1, $2, $3::numeric)
			ON CONFLICT ("key") DO UPDATE SET nombre = EXCLUDED.nombre, precio = EXCLUDED.precio`,
			t.key, t.name, t.price); err != nil {
			return err
		}
	}
	return nil
}

func seedMenu(ctx context.Context, tx pgx.Tx) error {
	batch := &pgx.Batch{}
	for _, name := range []string{"Milanesa con puré", "Pollo al horno con papas", "Ravioles con fileto"} {
		batch.Queue(`INSERT INTO menu_daily (name) SELECT $1 WHERE NOT EXISTS (SELECT 1 FROM menu_daily WHERE name = $1)`, name)
	}
	for _, name := range []string{"Ensalada César", "Wok de vegetales"} {
		batch.Queue(`INSERT INTO menu_fixed (name) SELECT $1 WHERE NOT EXISTS (SELECT 1 FROM menu_fixed WHERE name = $1)`, name)
	}
	for _, extra := range [][2]string{{"Flan casero", "postre"}, {"Ensalada chica", "ensalada"}, {"Huevo duro", "proteina"}} {
		batch.Queue(`INSERT INTO menu_extras (name, categoria) SELECT $1, $2 WHERE NOT EXISTS (SELECT 1 FROM menu_extras WHERE name = $1)`,
			extra[0], extra[1])
	}
	return tx.SendBatch(ctx, batch).Close()
}

func seedWeek(ctx context.Context, tx pgx.Tx, clk *clock.Clock) error {
	monday := clock.MondayOf(clk.OperationalDate())
	friday := clock.FridayOf(monday)
	closeAt := clk.EndOfDay(friday.AddDays(-1))
	_, err := tx.Exec(ctx, `INSERT INTO menu_semana (semana_inicio, semana_fin, habilitado, cierre)
		VALUES ($1, $2, TRUE, $3)
		ON CONFLICT (semana_inicio) DO UPDATE SET habilitado = TRUE, cierre = EXCLUDED.cierre, updated_at = now()`,
		monday.Time(), friday.Time(), closeAt)
	if err != nil {
		return err
	}
	fmt.Printf("  week %s..%s closes %s\n", monday, friday, closeAt.Format(time.RFC3339))
	return nil
}
