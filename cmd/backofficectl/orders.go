package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	orderdomain "storefront/backoffice/internal/domain/order"
	orderusecase "storefront/backoffice/internal/usecase/order"

	"github.com/spf13/cobra"
)

func newOrdersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Place and manage orders",
	}
	cmd.AddCommand(
		newOrdersListCmd(a),
		newOrdersGetCmd(a),
		newOrdersCreateCmd(a),
		newOrderTransitionCmd(a, "pay", "Mark an order paid"),
		newOrderTransitionCmd(a, "cancel", "Cancel an order and restock its items"),
	)
	return cmd
}

func newOrdersListCmd(a *app) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, s, err := a.session(cmd)
			if err != nil {
				return err
			}
			orders, err := c.ListOrders(cmd.Context(), s, status)
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(orders)
			}
			printOrders(a, orders)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by NEW, PAID or CANCELLED")
	return cmd
}

func newOrdersGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one order with its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, s, err := a.session(cmd)
			if err != nil {
				return err
			}
			o, err := c.GetOrder(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			return a.showOrder(o)
		},
	}
}

func newOrdersCreateCmd(a *app) *cobra.Command {
	var lines []string
	cmd := &cobra.Command{
		Use:   "create --item PRODUCT_ID:QTY [--item ...]",
		Short: "Place an order",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := parseItems(lines)
			if err != nil {
				return err
			}
			c, s, err := a.session(cmd)
			if err != nil {
				return err
			}

			catalog, err := c.ProductIndex(cmd.Context(), s)
			if err != nil {
				return err
			}
			for _, item := range items {
				if _, ok := catalog[item.ProductID]; !ok {
					return fmt.Errorf("unknown product %q", item.ProductID)
				}
			}

			o, err := c.CreateOrder(cmd.Context(), s, orderusecase.CreateInput{Items: items})
			if err != nil {
				return err
			}
			return a.showOrder(o)
		},
	}
	cmd.Flags().StringArrayVar(&lines, "item", nil, "Order line as PRODUCT_ID:QTY (repeatable)")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

func newOrderTransitionCmd(a *app, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, s, err := a.session(cmd)
			if err != nil {
				return err
			}
			var o *orderdomain.Order
			if action == "pay" {
				o, err = c.PayOrder(cmd.Context(), s, args[0])
			} else {
				o, err = c.CancelOrder(cmd.Context(), s, args[0])
			}
			if err != nil {
				return err
			}
			return a.showOrder(o)
		},
	}
}

func parseItems(lines []string) ([]orderusecase.ItemInput, error) {
	items := make([]orderusecase.ItemInput, 0, len(lines))
	for _, line := range lines {
		id, rawQty, ok := strings.Cut(line, ":")
		id = strings.TrimSpace(id)
		qty := 1
		if ok {
			n, err := strconv.Atoi(strings.TrimSpace(rawQty))
			if err != nil || n < 1 {
				return nil, fmt.Errorf("invalid quantity in %q", line)
			}
			qty = n
		}
		if id == "" {
			return nil, fmt.Errorf("missing product id in %q", line)
		}
		items = append(items, orderusecase.ItemInput{ProductID: id, Qty: qty})
	}
	return items, nil
}

func (a *app) showOrder(o *orderdomain.Order) error {
	if a.asJSON {
		return a.printJSON(o)
	}
	printOrders(a, []*orderdomain.Order{o})
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  PRODUCT\tQTY\tUNIT PRICE\tSUBTOTAL")
	for _, item := range o.Items {
		fmt.Fprintf(w, "  %s\t%d\t%.2f\t%.2f\n", item.ProductID, item.Qty, item.UnitPrice, item.Subtotal())
	}
	return w.Flush()
}

func printOrders(a *app, orders []*orderdomain.Order) {
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNUMBER\tSTATUS\tTOTAL\tITEMS\tCREATED")
	for _, o := range orders {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%d\t%s\n", o.ID, o.OrderNo, o.Status, o.TotalAmount, len(o.Items), o.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}
