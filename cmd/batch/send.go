package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhoicas/acumulus-sync/internal/domain/entity"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Envía un rango de fuentes a Acumulus en secuencia",
	Long: `Envía a Acumulus todas las fuentes del rango indicado, una a una. El fallo
de una fuente no detiene las siguientes; al final se imprime el desenlace de
cada una y el código de salida refleja si hubo errores duros.`,
	Example: `  # Pedidos 1000 a 1050
  acumulus-batch send --type Order --from-id 1000 --to-id 1050

  # Notas crédito de marzo, reenviando las ya registradas
  acumulus-batch send --type CreditNote --from-date 2026-03-01 --to-date 2026-03-31 --force

  # Simulación sin envío ni persistencia
  acumulus-batch send --type Order --from-id 1000 --to-id 1050 --dry-run`,
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().String("type", "Order", "Tipo de fuente: Order | CreditNote")
	sendCmd.Flags().String("from-id", "", "Primer id del rango")
	sendCmd.Flags().String("to-id", "", "Último id del rango")
	sendCmd.Flags().String("from-date", "", "Primera fecha del rango (YYYY-MM-DD)")
	sendCmd.Flags().String("to-date", "", "Última fecha del rango (YYYY-MM-DD)")
	sendCmd.Flags().Bool("force", false, "Reenviar aunque ya exista registro")
	sendCmd.Flags().Bool("dry-run", false, "Evaluar sin enviar ni persistir")
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	typ := entity.SourceType(mustString(cmd, "type"))
	if !typ.Valid() {
		return fmt.Errorf("--type debe ser Order o CreditNote")
	}

	d, err := buildDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	fromID, toID := mustString(cmd, "from-id"), mustString(cmd, "to-id")
	fromDate, toDate := mustString(cmd, "from-date"), mustString(cmd, "to-date")

	var sources []entity.InvoiceSource
	switch {
	case fromID != "" && toID != "":
		sources, err = d.orders.ListSourcesByID(ctx, typ, fromID, toID)
	case fromDate != "" && toDate != "":
		var from, to time.Time
		if from, err = time.Parse("2006-01-02", fromDate); err != nil {
			return fmt.Errorf("--from-date inválida: %w", err)
		}
		if to, err = time.Parse("2006-01-02", toDate); err != nil {
			return fmt.Errorf("--to-date inválida: %w", err)
		}
		sources, err = d.orders.ListSourcesByDate(ctx, typ, from, to)
	default:
		return fmt.Errorf("se requiere --from-id/--to-id o --from-date/--to-date")
	}
	if err != nil {
		return fmt.Errorf("resolver rango: %w", err)
	}
	if len(sources) == 0 {
		fmt.Println("ninguna fuente en el rango")
		return nil
	}

	force, _ := cmd.Flags().GetBool("force")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	ok, perSource := d.manager.SendBatch(ctx, sources, force, dryRun)

	ids := make([]string, 0, len(perSource))
	for id := range perSource {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Println(perSource[id])
	}

	if !ok {
		return fmt.Errorf("el batch terminó con errores")
	}
	return nil
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}
