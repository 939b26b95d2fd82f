package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"reelforge/src/core/generation"
	"reelforge/src/storage/postgres/genjobctrl"
)

var (
	pollJobID   string
	pollOwnerID string
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Follow a generation job until it finishes",
	RunE:  runPoll,
}

func init() {
	rootCmd.AddCommand(pollCmd)
	settingDefaultConfig()

	pollCmd.Flags().StringVar(&pollJobID, "job", "", "ID of the job to follow")
	pollCmd.Flags().StringVar(&pollOwnerID, "owner", "", "owner ID the job was submitted under")
	pollCmd.MarkFlagRequired("job")
	pollCmd.MarkFlagRequired("owner")
}

func runPoll(cmd *cobra.Command, args []string) error {
	host := viper.GetString("postgres.host")
	user := viper.GetString("postgres.user")
	password := viper.GetString("postgres.password")
	dbname := viper.GetString("postgres.db")
	port := viper.GetString("postgres.port")

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		host, user, password, dbname, port)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying *sql.DB: %v", err)
	}
	defer sqlDB.Close()

	genJobService, err := genjobctrl.NewGenJobService(db)
	if err != nil {
		return fmt.Errorf("failed to initialize generation job service: %v", err)
	}

	queryService := generation.NewQueryService(genJobService)
	poller := generation.NewPoller(
		queryService,
		viper.GetDuration("poll.interval"),
		viper.GetDuration("poll.max_wait"),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("generating"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	job, err := poller.Poll(ctx, pollJobID, pollOwnerID, func(j *generation.Job) {
		bar.Set(j.Progress())
	})
	bar.Clear()

	var timeout *generation.TimeoutError
	var failure *generation.StepExecutionError
	switch {
	case err == nil:
		fmt.Printf("Job %s completed\n", job.ID)
		if url, ok := job.ResultData[generation.FinalVideoKey]; ok {
			fmt.Printf("Video: %s\n", url)
		}
		return nil
	case errors.As(err, &failure):
		fmt.Printf("Job %s failed at step %s: %s\n", pollJobID, failure.Step, failure.Message)
		return err
	case errors.As(err, &timeout):
		fmt.Printf("Gave up waiting after %s; the job may still be running\n", timeout.Elapsed.Round(time.Second))
		return err
	default:
		return err
	}
}
