package cli

import (
	"os"
	"path/filepath"

	"github.com/rcliao/voicenote/internal/trace"
	"github.com/spf13/cobra"
)

func init() {
	recognize := &cobra.Command{
		Use:   "recognize <file>",
		Short: "Transcribe an audio file without storing it",
		Args:  cobra.ExactArgs(1),
		Run:   runRecognize,
	}
	recognize.Flags().StringP("user", "u", "", "User ID")

	upload := &cobra.Command{
		Use:   "upload <file>",
		Short: "Store, transcribe and index an audio file",
		Args:  cobra.ExactArgs(1),
		Run:   runUpload,
	}
	upload.Flags().StringP("user", "u", "", "User ID")
	upload.MarkFlagRequired("user")

	save := &cobra.Command{
		Use:   "save <file>",
		Short: "Store an audio file with an already confirmed transcript",
		Args:  cobra.ExactArgs(1),
		Run:   runSave,
	}
	save.Flags().StringP("user", "u", "", "User ID")
	save.Flags().StringP("transcript", "t", "", "Transcript text")
	save.MarkFlagRequired("user")
	save.MarkFlagRequired("transcript")

	RootCmd.AddCommand(recognize, upload, save)
}

func runRecognize(cmd *cobra.Command, args []string) {
	requireProviders()
	user, _ := cmd.Flags().GetString("user")
	audio := readAudio(args[0])

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	pipe, _, err := newPipeline(s)
	if err != nil {
		exitErr("pipeline", err)
	}

	ctx, _ := trace.Ensure(cmd.Context())
	res, err := pipe.Recognize(ctx, user, filepath.Base(args[0]), audio)
	if err != nil {
		exitErr("recognize", err)
	}
	if err := newFormatter().JSON(res); err != nil {
		exitErr("output", err)
	}
}

func runUpload(cmd *cobra.Command, args []string) {
	requireProviders()
	user, _ := cmd.Flags().GetString("user")
	audio := readAudio(args[0])

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	pipe, _, err := newPipeline(s)
	if err != nil {
		exitErr("pipeline", err)
	}

	ctx, _ := trace.Ensure(cmd.Context())
	res, err := pipe.Upload(ctx, user, filepath.Base(args[0]), audio)
	if err != nil {
		exitErr("upload", err)
	}
	if err := newFormatter().JSON(res); err != nil {
		exitErr("output", err)
	}
}

func runSave(cmd *cobra.Command, args []string) {
	requireProviders()
	user, _ := cmd.Flags().GetString("user")
	transcript, _ := cmd.Flags().GetString("transcript")
	audio := readAudio(args[0])

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	pipe, _, err := newPipeline(s)
	if err != nil {
		exitErr("pipeline", err)
	}

	ctx, _ := trace.Ensure(cmd.Context())
	res, err := pipe.Save(ctx, user, filepath.Base(args[0]), audio, transcript)
	if err != nil {
		exitErr("save", err)
	}
	if err := newFormatter().JSON(res); err != nil {
		exitErr("output", err)
	}
}

func readAudio(path string) []byte {
	b, err := os.ReadFile(path)
	if err != nil {
		exitErr("read audio", err)
	}
	if len(b) == 0 {
		exitErr("read audio", os.ErrInvalid)
	}
	return b
}
