// Command threadwatch follows the comment thread of one post in the terminal,
// refreshing on an interval, and can post a comment or reply first.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"plaza/internal/app"
	"plaza/internal/auth"
	"plaza/internal/cache"
	"plaza/internal/config"
	"plaza/internal/gateway/rest"
	"plaza/internal/logging"
	"plaza/internal/models"
	"plaza/internal/services"
	"plaza/internal/utils"
	"plaza/internal/view"
)

func main() {
	postID := flag.Int64("post", 0, "id of the post to watch")
	collapse := flag.String("collapse", "", "comma separated comment ids whose replies are hidden")
	once := flag.Bool("once", false, "print the thread once and exit")
	comment := flag.String("comment", "", "post this comment before watching (needs PLAZA_ACCESS_TOKEN)")
	replyTo := flag.Int64("reply-to", 0, "parent comment id for -comment")
	flag.Parse()

	if *postID <= 0 {
		fmt.Fprintln(os.Stderr, "usage: threadwatch -post <id> [-collapse 3,7] [-once] [-comment text [-reply-to id]]")
		os.Exit(2)
	}
	collapsed, err := utils.ParseIDList(*collapse)
	if err != nil {
		log.Fatalf("Invalid -collapse: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := app.OpenGateway(cfg, logger, true)
	if err != nil {
		log.Fatalf("Failed to open gateway: %v", err)
	}
	if token := os.Getenv("PLAZA_ACCESS_TOKEN"); token != "" {
		if client, ok := gw.Auth.(*rest.Client); ok {
			if err := client.SetSession(ctx, token); err != nil {
				log.Fatalf("Failed to restore session: %v", err)
			}
		}
	}

	session, err := auth.NewSession(ctx, gw.Auth)
	if err != nil {
		log.Fatalf("Failed to read current identity: %v", err)
	}
	defer session.Close()
	unsubscribe := session.OnChange(func(identity *models.Identity) {
		if identity == nil {
			fmt.Fprintln(os.Stderr, "signed out")
			return
		}
		fmt.Fprintf(os.Stderr, "signed in as %s\n", identity.AuthorName())
	})
	defer unsubscribe()

	store, err := cache.NewLRU(64, cfg.Cache.TTL, app.CacheOptions(cfg)...)
	if err != nil {
		log.Fatalf("Failed to create cache: %v", err)
	}
	svc := app.NewServices(cfg, gw, store, logger)

	if *comment != "" {
		in := services.NewComment{PostID: *postID, Content: *comment}
		if *replyTo > 0 {
			in.ParentID = replyTo
		}
		if _, err := svc.Comments.SubmitComment(ctx, session.Identity(), in); err != nil {
			// 保留输入，方便用户重试
			fmt.Fprintf(os.Stderr, "%v\nyour comment was not posted:\n%s\n", err, *comment)
			os.Exit(1)
		}
	}

	if *once {
		roots, err := svc.Comments.Thread(ctx, *postID)
		if err != nil {
			log.Fatalf("Failed to load comments: %v", err)
		}
		if err := view.WriteText(os.Stdout, view.Flatten(roots, collapsed)); err != nil {
			log.Fatal(err)
		}
		return
	}

	var last *services.ThreadSnapshot
	w := svc.Refresher.Watch(ctx, *postID, func(snap services.ThreadSnapshot) {
		if snap.Err != nil {
			fmt.Fprintf(os.Stderr, "refresh failed: %v\n", snap.Err)
			if last != nil {
				fmt.Fprintf(os.Stderr, "showing comments from %s\n", last.FetchedAt.Format(time.Kitchen))
			}
			return
		}
		last = &snap
		fmt.Print("\033[H\033[2J")
		fmt.Printf("post %d · %d comments · updated %s\n\n", snap.PostID, snap.Total, snap.FetchedAt.Format(time.Kitchen))
		if err := view.WriteText(os.Stdout, view.Flatten(snap.Roots, collapsed)); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	})
	<-w.Done()
}
