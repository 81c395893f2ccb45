// Package main prints a wallet's pending staking rewards and the pool APY.
// With --watch it keeps printing the projection once per second.
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

	"npc-stake/internal/accrual"
	"npc-stake/internal/domain"
	"npc-stake/internal/program"
	"npc-stake/internal/projection"
	"npc-stake/internal/refresh"
	"npc-stake/internal/solana"
)

func main() {
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	programID := flag.String("program-id", os.Getenv("STAKING_PROGRAM_ID"), "Staking program ID")
	stakingMint := flag.String("staking-mint", os.Getenv("STAKING_MINT"), "Staking mint address")
	wallet := flag.String("wallet", os.Getenv("WALLET_ADDRESS"), "Wallet address")
	at := flag.Int64("at", 0, "Project at this unix timestamp instead of now")
	watch := flag.Bool("watch", false, "Print the projection every second until interrupted")
	timeout := flag.Duration("timeout", 30*time.Second, "RPC timeout")

	flag.Parse()

	logger := log.New(os.Stderr, "[pending] ", log.LstdFlags)

	if *rpcEndpoint == "" || *programID == "" || *stakingMint == "" {
		logger.Fatal("--rpc-endpoint, --program-id and --staking-mint are required")
	}

	addrs, err := program.Derive(*programID, *stakingMint, *wallet)
	if err != nil {
		logger.Fatalf("Invalid staking accounts: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	projector := projection.New(projection.Options{Logger: logger})
	defer projector.Close()

	refresher := refresh.New(refresh.Options{
		RPC:       solana.NewHTTPClient(*rpcEndpoint, solana.WithTimeout(*timeout)),
		Projector: projector,
		Addresses: addrs,
		Logger:    logger,
	})

	fetchCtx, fetchCancel := context.WithTimeout(ctx, *timeout)
	_, err = refresher.Refresh(fetchCtx, true)
	fetchCancel()
	if err != nil {
		logger.Fatalf("Fetch staking accounts: %v", err)
	}

	snaps := projector.Snapshots()
	if snaps.Pool == nil {
		logger.Fatalf("Pool %s is not initialized", addrs.Pool)
	}
	printPool(snaps)

	if !*watch {
		res := projector.Current()
		if *at != 0 {
			res = projector.ProjectAt(*at)
		}
		printProjection(res)
		return
	}

	updates, unsubscribe := projector.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-updates:
			if !ok {
				return
			}
			printProjection(res)
		}
	}
}

func printPool(s projection.Snapshots) {
	apy := accrual.ComputeAPY(s.Pool)
	fmt.Printf("pool:          %s (slot %d)\n", s.Pool.Address, s.Slot)
	fmt.Printf("total staked:  %s\n", accrual.FormatToken(s.Pool.TotalStaked, s.Pool.StakingDecimals, 0, 6))
	fmt.Printf("reward rate:   %s/s\n", accrual.FormatToken(s.Pool.RewardRatePerSec, s.Pool.RewardDecimals, 0, 9))

	theoretical := ""
	if apy.Theoretical {
		theoretical = " (theoretical, nothing staked)"
	}
	fmt.Printf("apy:           %.2f%%%s\n", apy.Percent, theoretical)

	if s.User == nil {
		fmt.Println("position:      none")
		return
	}
	fmt.Printf("staked:        %s\n", accrual.FormatToken(s.User.Staked, s.Pool.StakingDecimals, 0, 6))
}

func printProjection(res domain.ProjectionResult) {
	fmt.Printf("%s pending: %s (%s base units)\n",
		time.Unix(res.AsOf, 0).UTC().Format(time.RFC3339),
		accrual.FormatToken(res.PendingBaseUnits, res.RewardDecimals, 0, 8),
		res.PendingBaseUnits)
}
