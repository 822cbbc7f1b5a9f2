package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	log "github.com/sirupsen/logrus"

	config "github.com/a112660307-droid/reward-card/configs"
	"github.com/a112660307-droid/reward-card/internal/cardsvc/store"
	"github.com/a112660307-droid/reward-card/internal/db"
	"github.com/a112660307-droid/reward-card/internal/identity"
	"github.com/a112660307-droid/reward-card/internal/locator"
	"github.com/a112660307-droid/reward-card/internal/project"
	"github.com/a112660307-droid/reward-card/internal/sync"
)

const SERVICE_NAME = "cardctl"

func init() {
	config.Logging(SERVICE_NAME)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	pageURL := flag.String("url", "https://cards.local/loyalty", "page url, with or without a card parameter")
	apiBase := flag.String("api", "http://localhost:8084", "card service base url")
	flag.Parse()

	ctx := context.Background()
	stdin := bufio.NewReader(os.Stdin)

	// identity is a startup precondition; a bounded poll, then give up
	resolver := identity.NewResolver(*apiBase + "/v1/identity")
	sess, err := resolver.Resolve(ctx)
	if err != nil {
		log.Errorf("startup failed: %v", err)
		fmt.Println("startup failed: identity service never became ready")
		os.Exit(1)
	}

	cardID, resolvedURL, minted, err := locator.Resolve(*pageURL)
	if err != nil {
		log.Errorf("startup failed: %v", err)
		fmt.Println("startup failed: bad page url")
		os.Exit(1)
	}
	if minted {
		fmt.Printf("minted new card, session url: %s\n", resolvedURL)
	}

	mongoDB, cancelMongo, err := db.Connect()
	if err != nil {
		log.Errorf("startup failed: %v", err)
		fmt.Println("startup failed: card store unreachable")
		os.Exit(1)
	}
	defer cancelMongo()

	cardStore := store.NewCardStore(mongoDB)

	render := func(v project.View) {
		fmt.Println()
		fmt.Print(v.Text())
		fmt.Print("> ")
	}
	confirm := func(prompt string) bool {
		fmt.Printf("%s [y/N] ", prompt)
		line, err := stdin.ReadString('\n')
		if err != nil {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}

	core := sync.NewCore(cardStore, sess.Uid, cardID, render, confirm)
	if err := core.Start(ctx); err != nil {
		log.Errorf("startup failed: %v", err)
		fmt.Println("startup failed: could not open the card")
		os.Exit(1)
	}
	defer core.Stop()

	fmt.Println("commands: + | - | reset | banner <url> | stamp <url> | reward <cost> <name> [| note] | redeem <id> | delete <id> | share | quit")

	for {
		fmt.Print("> ")
		line, err := stdin.ReadString('\n')
		if err != nil {
			return
		}
		if err := dispatch(ctx, core, resolvedURL, cardID, strings.TrimSpace(line)); err != nil {
			if err == errQuit {
				return
			}
			fmt.Printf("! %v\n", err)
		}
	}
}

var errQuit = fmt.Errorf("quit")

func dispatch(ctx context.Context, core *sync.Core, pageURL, cardID, line string) error {
	if line == "" {
		return nil
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "+":
		return core.AddPoint(ctx)
	case "-":
		return core.SubtractPoint(ctx)
	case "reset":
		return core.Reset(ctx)
	case "banner":
		return core.SaveBannerURL(ctx, strings.TrimPrefix(line, "banner"))
	case "stamp":
		return core.SaveStampURL(ctx, strings.TrimPrefix(line, "stamp"))
	case "reward":
		if len(fields) < 3 {
			return fmt.Errorf("usage: reward <cost> <name> [| note]")
		}
		cost, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return fmt.Errorf("usage: reward <cost> <name> [| note]")
		}
		rest := strings.Join(fields[2:], " ")
		name, note := rest, ""
		if i := strings.Index(rest, "|"); i >= 0 {
			name, note = rest[:i], rest[i+1:]
		}
		return core.AddReward(ctx, name, cost, note)
	case "redeem":
		if len(fields) != 2 {
			return fmt.Errorf("usage: redeem <reward-id>")
		}
		return core.RedeemReward(ctx, fields[1])
	case "delete":
		if len(fields) != 2 {
			return fmt.Errorf("usage: delete <reward-id>")
		}
		return core.DeleteReward(ctx, fields[1])
	case "share":
		return share(pageURL, cardID)
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
}

// share copies the read-only link; when no clipboard is available the link
// is printed for manual copying instead.
func share(pageURL, cardID string) error {
	link, err := locator.ShareLink(pageURL, cardID)
	if err != nil {
		return err
	}
	if err := clipboard.WriteAll(link); err != nil {
		log.Warnf("clipboard unavailable: %v", err)
		fmt.Printf("copy this link to share (read-only): %s\n", link)
		return nil
	}
	fmt.Println("share link copied!")
	return nil
}
