package main

import (
	"fmt"
	"os"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/azaliaz/lms/library-cli/internal/client"
)

type options struct {
	server string
	token  string
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "library-cli",
		Short:        "Command line client for the library service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", "http://localhost:8080", "library service base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("LMS_TOKEN"), "access token (env LMS_TOKEN)")

	root.AddCommand(
		registerCmd(opts),
		loginCmd(opts),
		logoutCmd(opts),
		booksCmd(opts),
		ordersCmd(opts),
		fineCmd(opts),
	)
	return root
}

func (o *options) client() *client.Client {
	return client.New(o.server, o.token)
}

// readPassword reads a password without echoing it.
func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(bytePassword)), nil
}

func registerCmd(opts *options) *cobra.Command {
	var mobile, email, adminKey string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword("Password: ")
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			msg, err := opts.client().Register(mobile, email, password, adminKey)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	cmd.Flags().StringVar(&mobile, "mobile", "", "mobile number")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&adminKey, "admin-key", "", "admin registration key")
	_ = cmd.MarkFlagRequired("mobile")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func loginCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "login <mobile-number|email>",
		Short: "Log in and print an access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword("Password: ")
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			token, err := opts.client().Login(args[0], password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

func logoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the current token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.client().Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func booksCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "books", Short: "Browse and manage books"}

	var filter client.BookFilter
	list := &cobra.Command{
		Use:   "list",
		Short: "List books",
		RunE: func(cmd *cobra.Command, _ []string) error {
			books, err := opts.client().Books(filter)
			if err != nil {
				return err
			}
			printBooks(cmd, books)
			return nil
		},
	}
	list.Flags().StringVar(&filter.Genre, "genre", "", "exact genre")
	list.Flags().StringVar(&filter.Title, "title", "", "exact title")
	list.Flags().StringVar(&filter.Author, "author", "", "exact author")
	list.Flags().IntVar(&filter.Year, "year", 0, "publication year")
	list.Flags().IntVar(&filter.Page, "page", 1, "page number")
	list.Flags().IntVar(&filter.Limit, "limit", 0, "page size, all books when 0")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := opts.client().Book(args[0])
			if err != nil {
				return err
			}
			printBooks(cmd, []client.Book{book})
			return nil
		},
	}

	var book client.Book
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a book (admin)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			saved, err := opts.client().AddBook(book)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added book %s\n", saved.ID)
			return nil
		},
	}
	add.Flags().StringVar(&book.Title, "title", "", "title")
	add.Flags().StringVar(&book.Author, "author", "", "author")
	add.Flags().StringVar(&book.Genre, "genre", "", "genre")
	add.Flags().IntVar(&book.Year, "year", 0, "publication year")
	add.Flags().IntVar(&book.Quantity, "quantity", 0, "copies held")
	for _, name := range []string{"title", "author", "genre"} {
		_ = add.MarkFlagRequired(name)
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client().DeleteBook(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted")
			return nil
		},
	}

	cmd.AddCommand(list, get, add, del)
	return cmd
}

func ordersCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "orders", Short: "List and place orders"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List orders (own orders for users, all for admins)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			orders, err := opts.client().Orders()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tORDER NO\tBOOK\tQTY\tDATE")
			for _, o := range orders {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", o.ID, o.OrderNo, o.BookID, o.Quantity, o.Date.Format("2006-01-02"))
			}
			return w.Flush()
		},
	}

	var quantity int
	place := &cobra.Command{
		Use:   "place <book-id>",
		Short: "Order a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := opts.client().PlaceOrder(args[0], quantity)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "order %s placed (%s)\n", order.ID, order.OrderNo)
			return nil
		},
	}
	place.Flags().IntVar(&quantity, "quantity", 1, "copies to order")

	cmd.AddCommand(list, place)
	return cmd
}

func fineCmd(opts *options) *cobra.Command {
	var issue, expiry string
	cmd := &cobra.Command{
		Use:   "fine",
		Short: "Compute the overdue fine for a loan",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fine, err := opts.client().Fine(issue, expiry)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), fine)
			return nil
		},
	}
	cmd.Flags().StringVar(&issue, "issue", "", "issue date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&expiry, "expiry", "", "expiry date (YYYY-MM-DD or RFC 3339)")
	_ = cmd.MarkFlagRequired("issue")
	_ = cmd.MarkFlagRequired("expiry")
	return cmd
}

func printBooks(cmd *cobra.Command, books []client.Book) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tGENRE\tYEAR\tQTY")
	for _, b := range books {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n", b.ID, b.Title, b.Author, b.Genre, b.Year, b.Quantity)
	}
	_ = w.Flush()
}
