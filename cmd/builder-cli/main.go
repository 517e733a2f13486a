package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ShimmerHandmade/modernbuilder/internal/config"
	"github.com/ShimmerHandmade/modernbuilder/internal/document"
	"github.com/ShimmerHandmade/modernbuilder/internal/model"
	"github.com/ShimmerHandmade/modernbuilder/internal/storage"
	"github.com/ShimmerHandmade/modernbuilder/pkg/fsutils"
	"github.com/ShimmerHandmade/modernbuilder/pkg/ids"
)

func main() {
	// --- Setup Phase ---
	backend := flag.String("backend", config.BackendJSON, "Storage backend: json or sqlite")
	storagePath := flag.String("storage", filepath.Join("data", "websites"), "Documents directory (json) or database file (sqlite)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	store, cleanup, err := openStore(*backend, *storagePath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing storage: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	// --- Command Parsing using 'flag' package ---
	createCmd := flag.NewFlagSet("create", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	pagesCmd := flag.NewFlagSet("pages", flag.ExitOnError)
	addPageCmd := flag.NewFlagSet("add-page", flag.ExitOnError)
	ensurePagesCmd := flag.NewFlagSet("ensure-pages", flag.ExitOnError)
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)

	createName := createCmd.String("name", "", "Name of the website to create (required)")

	pagesID := pagesCmd.String("id", "", "ID of the website (required)")

	addPageID := addPageCmd.String("id", "", "ID of the website (required)")
	addPageTitle := addPageCmd.String("title", "", "Title of the new page (required)")

	ensurePagesID := ensurePagesCmd.String("id", "", "ID of the website (required)")

	exportID := exportCmd.String("id", "", "ID of the website (required)")
	exportOut := exportCmd.String("out", "", "Output file (defaults to stdout)")

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "create":
		createCmd.Parse(args[1:])
		if *createName == "" {
			fmt.Println("Error: -name flag is required for create command")
			createCmd.Usage()
			os.Exit(1)
		}
		handleCreate(ctx, store, *createName)
	case "list":
		listCmd.Parse(args[1:])
		handleList(ctx, store)
	case "pages":
		pagesCmd.Parse(args[1:])
		requireID(pagesCmd, *pagesID)
		handlePages(ctx, store, *pagesID)
	case "add-page":
		addPageCmd.Parse(args[1:])
		requireID(addPageCmd, *addPageID)
		if *addPageTitle == "" {
			fmt.Println("Error: -title flag is required for add-page command")
			addPageCmd.Usage()
			os.Exit(1)
		}
		handleAddPage(ctx, store, *addPageID, *addPageTitle)
	case "ensure-pages":
		ensurePagesCmd.Parse(args[1:])
		requireID(ensurePagesCmd, *ensurePagesID)
		handleEnsurePages(ctx, store, *ensurePagesID)
	case "export":
		exportCmd.Parse(args[1:])
		requireID(exportCmd, *exportID)
		handleExport(ctx, store, *exportID, *exportOut)
	default:
		fmt.Printf("Unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func requireID(cmd *flag.FlagSet, id string) {
	if id == "" {
		fmt.Println("Error: -id flag is required")
		cmd.Usage()
		os.Exit(1)
	}
}

func openStore(backend, path string, logger *slog.Logger) (storage.DocumentStore, func(), error) {
	switch backend {
	case config.BackendSQLite:
		store, err := storage.NewSQLiteStore(path, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case config.BackendJSON:
		store, err := storage.NewJSONStore(path, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", backend)
	}
}

// --- Command Handlers ---

func handleCreate(ctx context.Context, store storage.DocumentStore, name string) {
	doc := &model.Document{
		WebsiteID: ids.NewPageID(),
		Name:      name,
		Content:   []*model.Element{},
	}
	document.EnsureRequiredPages(doc, nil)
	if err := store.CreateDocument(ctx, doc); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating website: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Created website %q with ID: %s\n", name, doc.WebsiteID)
	for _, page := range doc.Settings.Pages {
		fmt.Printf("  page: %-8s %s\n", page.Title, page.ID)
	}
}

func handleList(ctx context.Context, store storage.DocumentStore) {
	idList, err := store.ListWebsiteIDs(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing websites: %v\n", err)
		os.Exit(1)
	}
	if len(idList) == 0 {
		fmt.Println("No websites found.")
		return
	}
	fmt.Printf("Found %d website(s):\n", len(idList))
	for _, id := range idList {
		doc, err := store.LoadDocument(ctx, id)
		if err != nil {
			fmt.Printf("  %s  (unreadable: %v)\n", id, err)
			continue
		}
		fmt.Printf("  %s  %q  %d page(s)  updated %s\n",
			doc.WebsiteID, doc.Name, len(doc.Settings.Pages), doc.UpdatedAt.Format(time.RFC3339))
	}
}

func handlePages(ctx context.Context, store storage.DocumentStore, websiteID string) {
	doc, err := store.LoadDocument(ctx, websiteID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading website: %v\n", err)
		os.Exit(1)
	}
	for _, page := range doc.Settings.Pages {
		marker := " "
		if page.IsHomePage {
			marker = "*"
		}
		elements := len(doc.Settings.PagesContent[page.ID])
		fmt.Printf("%s %-12s %-10s %s  (%d root elements)\n", marker, page.Title, page.Slug, page.ID, elements)
	}
}

func handleAddPage(ctx context.Context, store storage.DocumentStore, websiteID, title string) {
	doc, err := store.LoadDocument(ctx, websiteID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading website: %v\n", err)
		os.Exit(1)
	}
	page := document.AddPage(doc, title, nil)
	if err := persistPages(ctx, store, doc); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving website: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Added page %q (%s) with ID: %s\n", page.Title, page.Slug, page.ID)
}

func handleEnsurePages(ctx context.Context, store storage.DocumentStore, websiteID string) {
	doc, err := store.LoadDocument(ctx, websiteID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading website: %v\n", err)
		os.Exit(1)
	}
	if !document.EnsureRequiredPages(doc, nil) {
		fmt.Println("All required pages already present.")
		return
	}
	if err := persistPages(ctx, store, doc); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving website: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Created missing required pages.")
}

func handleExport(ctx context.Context, store storage.DocumentStore, websiteID, out string) {
	doc, err := store.LoadDocument(ctx, websiteID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading website: %v\n", err)
		os.Exit(1)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding website: %v\n", err)
		os.Exit(1)
	}
	if out == "" {
		fmt.Println(string(data))
		return
	}
	if err := fsutils.WriteFileAtomic(out, data); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", out, err)
		os.Exit(1)
	}
	fmt.Printf("Exported website %s to %s\n", websiteID, out)
}

func persistPages(ctx context.Context, store storage.DocumentStore, doc *model.Document) error {
	return store.SaveDocument(ctx, doc.WebsiteID, nil, nil, model.SettingsPatch{
		Pages:         doc.Settings.Pages,
		PagesContent:  doc.Settings.PagesContent,
		PagesSettings: doc.Settings.PagesSettings,
	})
}

func printUsage() {
	fmt.Println("Usage: builder-cli [-backend json|sqlite] [-storage PATH] <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  create       -name NAME        Create a new website with the required pages")
	fmt.Println("  list                           List all websites")
	fmt.Println("  pages        -id ID            List a website's pages (* marks the home page)")
	fmt.Println("  add-page     -id ID -title T   Add a page with a slug derived from its title")
	fmt.Println("  ensure-pages -id ID            Create any missing required pages")
	fmt.Println("  export       -id ID [-out F]   Dump the website document as JSON")
}
