package main

import (
	"fmt"
	"text/tabwriter"

	productdomain "storefront/backoffice/internal/domain/product"
	productusecase "storefront/backoffice/internal/usecase/product"

	"github.com/spf13/cobra"
)

func newProductsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Browse and edit the catalog",
	}
	cmd.AddCommand(
		newProductsListCmd(a),
		newProductsGetCmd(a),
		newProductsCreateCmd(a),
		newProductsUpdateCmd(a),
		newProductsDeleteCmd(a),
	)
	return cmd
}

func newProductsListCmd(a *app) *cobra.Command {
	var page, limit int
	var search, sort string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products with search, sort and paging",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, s, err := a.session(cmd)
			if err != nil {
				return err
			}
			q := productdomain.Query{Page: page, Limit: limit, Search: search}
			if sort != "" {
				q.Sort = productdomain.ParseSort(sort)
			}
			result, err := c.ListProducts(cmd.Context(), s, q)
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(result)
			}
			printProducts(a, result.Data)
			pages := (result.Total + result.Limit - 1) / max(result.Limit, 1)
			fmt.Fprintf(a.out, "page %d of %d (%d products)\n", result.Page, max(pages, 1), result.Total)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", productdomain.DefaultPage, "Page number")
	cmd.Flags().IntVar(&limit, "limit", productdomain.DefaultLimit, "Rows per page")
	cmd.Flags().StringVar(&search, "search", "", "Case-insensitive name or SKU filter")
	cmd.Flags().StringVar(&sort, "sort", "", "Sort keys, e.g. price,-created_at")
	return cmd
}

func newProductsGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, s, err := a.session(cmd)
			if err != nil {
				return err
			}
			p, err := c.GetProduct(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(p)
			}
			printProducts(a, []*productdomain.Product{p})
			return nil
		},
	}
}

func newProductsCreateCmd(a *app) *cobra.Command {
	var in productusecase.CreateInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a product",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, s, err := a.session(cmd)
			if err != nil {
				return err
			}
			p, err := c.CreateProduct(cmd.Context(), s, in)
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(p)
			}
			fmt.Fprintf(a.out, "Created %s (%s)\n", p.Name, p.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "Product name")
	cmd.Flags().StringVar(&in.SKU, "sku", "", "Unique SKU")
	cmd.Flags().StringVar(&in.Description, "description", "", "Description")
	cmd.Flags().Float64Var(&in.Price, "price", 0, "Unit price")
	cmd.Flags().IntVar(&in.Stock, "stock", 0, "Units in stock")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("sku")
	return cmd
}

func newProductsUpdateCmd(a *app) *cobra.Command {
	var name, sku, description string
	var price float64
	var stock int
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change the given fields of a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in productusecase.UpdateInput
			flags := cmd.Flags()
			if flags.Changed("name") {
				in.Name = &name
			}
			if flags.Changed("sku") {
				in.SKU = &sku
			}
			if flags.Changed("description") {
				in.Description = &description
			}
			if flags.Changed("price") {
				in.Price = &price
			}
			if flags.Changed("stock") {
				in.Stock = &stock
			}

			c, s, err := a.session(cmd)
			if err != nil {
				return err
			}
			p, err := c.UpdateProduct(cmd.Context(), s, args[0], in)
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(p)
			}
			printProducts(a, []*productdomain.Product{p})
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Product name")
	cmd.Flags().StringVar(&sku, "sku", "", "Unique SKU")
	cmd.Flags().StringVar(&description, "description", "", "Description")
	cmd.Flags().Float64Var(&price, "price", 0, "Unit price")
	cmd.Flags().IntVar(&stock, "stock", 0, "Units in stock")
	return cmd
}

func newProductsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Remove a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, s, err := a.session(cmd)
			if err != nil {
				return err
			}
			if err := c.DeleteProduct(cmd.Context(), s, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted %s\n", args[0])
			return nil
		},
	}
}

func printProducts(a *app, products []*productdomain.Product) {
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSKU\tNAME\tPRICE\tSTOCK\tCREATED")
	for _, p := range products {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%d\t%s\n", p.ID, p.SKU, p.Name, p.Price, p.Stock, p.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}
