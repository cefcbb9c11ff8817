package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jhoicas/acumulus-sync/internal/domain/entity"
)

var statusCmd = &cobra.Command{
	Use:   "status <type> <id>",
	Short: "Consulta el estado remoto real de una fuente",
	Long: `Consulta a Acumulus qué sabe realmente de la fuente indicada, reconciliando
el registro local si quedó desfasado (concepto convertido en factura, entry
borrado en remoto, etc.).`,
	Example: `  acumulus-batch status Order 1042
  acumulus-batch status CreditNote 77`,
	Args: cobra.ExactArgs(2),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	source := entity.InvoiceSource{Type: entity.SourceType(args[0]), ID: args[1]}
	if !source.Type.Valid() || source.ID == "" {
		return fmt.Errorf("uso: status <Order|CreditNote> <id>")
	}

	d, err := buildDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	info, err := d.reconciler.Reconcile(ctx, source)
	if err != nil {
		return fmt.Errorf("reconciliar estado: %w", err)
	}

	fmt.Printf("Fuente:  %s\n", info.Source.Label())
	fmt.Printf("Estado:  %s\n", info.Status)
	if info.EntryID != 0 {
		fmt.Printf("Entry:   %d\n", info.EntryID)
	}
	if info.ConceptID != 0 {
		fmt.Printf("Concepto: %d\n", info.ConceptID)
	}
	if info.InvoiceNumber != "" {
		fmt.Printf("Factura: %s (%s)\n", info.InvoiceNumber, info.EntryDate)
	}
	if info.AmountMatch != "" {
		fmt.Printf("Importe: local %s / remoto %s (%s)\n",
			info.AmountLocal.StringFixed(2), info.AmountRemote.StringFixed(2), info.AmountMatch)
	}
	for _, m := range info.Messages {
		fmt.Printf("  [%s] %s\n", m.Severity, m.Text)
	}
	return nil
}
