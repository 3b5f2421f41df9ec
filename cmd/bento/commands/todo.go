package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/dyluth/bento/internal/printer"
	"github.com/dyluth/bento/pkg/bento"
	"github.com/spf13/cobra"
)

// maxImageSide bounds the longer side of images attached with --image.
const maxImageSide = 640

var (
	addDescription string
	addImagePath   string
	addRawImage    bool

	updateTitle       string
	updateDescription string

	doneUndo bool
)

var addCmd = &cobra.Command{
	Use:   "add BENTO_ID TITLE",
	Short: "Add a todo at the top of a bento",
	Long: `Add a todo at the top of a bento and publish the new list.

With --image the file is scaled to fit ` + fmt.Sprint(maxImageSide) + ` pixels, re-encoded as JPEG and
attached to the published entry. Use --raw to attach the file unchanged.`,
	Args: cobra.ExactArgs(2),
	RunE: runAdd,
}

var updateCmd = &cobra.Command{
	Use:   "update BENTO_ID TODO",
	Short: "Change the title or description of a todo",
	Long: `Change the title or description of a todo in place.

TODO is the index shown by 'bento show' or a prefix of the todo ID.`,
	Args: cobra.ExactArgs(2),
	RunE: runUpdate,
}

var doneCmd = &cobra.Command{
	Use:   "done BENTO_ID TODO",
	Short: "Mark a todo as done",
	Args:  cobra.ExactArgs(2),
	RunE:  runDone,
}

var moveCmd = &cobra.Command{
	Use:   "move BENTO_ID FROM TO",
	Short: "Move a todo to another position",
	Long: `Move the todo at index FROM to index TO, shifting the items in between,
then publish the new order.`,
	Args: cobra.ExactArgs(3),
	RunE: runMove,
}

var clearCmd = &cobra.Command{
	Use:   "clear BENTO_ID",
	Short: "Remove every completed todo",
	Long: `Remove every completed todo, keeping the order of the rest.

Nothing is published when no todo is done.`,
	Args: cobra.ExactArgs(1),
	RunE: runClear,
}

var removeCmd = &cobra.Command{
	Use:   "remove BENTO_ID TODO",
	Short: "Remove a single todo (not supported yet)",
	Args:  cobra.ExactArgs(2),
	RunE:  runRemove,
}

func init() {
	addCmd.Flags().StringVarP(&addDescription, "description", "d", "", "Todo description")
	addCmd.Flags().StringVar(&addImagePath, "image", "", "Path of an image to attach")
	addCmd.Flags().BoolVar(&addRawImage, "raw", false, "Attach the image without re-encoding")

	updateCmd.Flags().StringVarP(&updateTitle, "title", "t", "", "New title")
	updateCmd.Flags().StringVarP(&updateDescription, "description", "d", "", "New description")

	doneCmd.Flags().BoolVar(&doneUndo, "undo", false, "Mark the todo as not done")

	rootCmd.AddCommand(addCmd, updateCmd, doneCmd, moveCmd, clearCmd, removeCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.bind(ctx, args[0]); err != nil {
		return err
	}

	var image []byte
	if addImagePath != "" {
		image, err = os.ReadFile(addImagePath)
		if err != nil {
			return printer.Error("cannot read image", err.Error(), nil)
		}
		if !addRawImage {
			image, err = s.images.Prepare(image, maxImageSide)
			if err != nil {
				return printer.Error("unsupported image", err.Error(), []string{"Use a JPEG or PNG file, or pass --raw"})
			}
		}
	}

	item := bento.NewTodoItem(args[1], addDescription, s.cfg.Participant.ID, s.nowMillis())
	if err := s.store.AddItem(ctx, item, image, fmt.Sprintf("%s added %s", s.cfg.Participant.Name, item.Title)); err != nil {
		return fmt.Errorf("failed to add todo: %w", err)
	}

	printer.Success("Added '%s' (%s)\n", item.Title, item.UUID[:8])
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	if !cmd.Flags().Changed("title") && !cmd.Flags().Changed("description") {
		return printer.Error("nothing to update", "Pass --title or --description.", nil)
	}

	ctx := context.Background()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.bind(ctx, args[0]); err != nil {
		return err
	}
	item, _, err := s.item(args[1])
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("title") {
		item.Title = updateTitle
	}
	if cmd.Flags().Changed("description") {
		item.Description = updateDescription
	}
	if err := s.modify(ctx, item, fmt.Sprintf("%s edited %s", s.cfg.Participant.Name, item.Title)); err != nil {
		return err
	}

	printer.Success("Updated '%s'\n", item.Title)
	return nil
}

func runDone(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.bind(ctx, args[0]); err != nil {
		return err
	}
	item, _, err := s.item(args[1])
	if err != nil {
		return err
	}

	item.Done = !doneUndo
	verb, summary := "completed", "Completed"
	if doneUndo {
		verb, summary = "reopened", "Reopened"
	}
	if err := s.modify(ctx, item, fmt.Sprintf("%s %s %s", s.cfg.Participant.Name, verb, item.Title)); err != nil {
		return err
	}

	printer.Success("%s '%s'\n", summary, item.Title)
	return nil
}

// modify stamps item as changed by the local participant and publishes it.
func (s *session) modify(ctx context.Context, item bento.TodoItem, message string) error {
	item.ModifiedAtMillis = s.nowMillis()
	item.ModifierID = s.cfg.Participant.ID
	if err := s.store.UpdateItem(ctx, item, message); err != nil {
		return fmt.Errorf("failed to update todo: %w", err)
	}
	return nil
}

func runMove(cmd *cobra.Command, args []string) error {
	from, err := parseIndex(args[1])
	if err != nil {
		return printer.Error("invalid FROM index", err.Error(), nil)
	}
	to, err := parseIndex(args[2])
	if err != nil {
		return printer.Error("invalid TO index", err.Error(), nil)
	}

	ctx := context.Background()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.bind(ctx, args[0]); err != nil {
		return err
	}

	if err := s.store.ReorderItem(from, to); err != nil {
		return printer.Error("cannot move todo", err.Error(), []string{"Check the indexes with:\n  bento show " + args[0]})
	}
	if err := s.store.SortCompleted(ctx, fmt.Sprintf("%s reordered the list", s.cfg.Participant.Name)); err != nil {
		return fmt.Errorf("failed to publish order: %w", err)
	}

	printer.Success("Moved todo %d to %d\n", from, to)
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.bind(ctx, args[0]); err != nil {
		return err
	}

	removed, err := s.store.ClearCompleted(ctx, fmt.Sprintf("%s cleared completed todos", s.cfg.Participant.Name))
	if err != nil {
		return fmt.Errorf("failed to clear todos: %w", err)
	}
	if removed == 0 {
		printer.Info("No completed todos\n")
		return nil
	}

	noun := "todos"
	if removed == 1 {
		noun = "todo"
	}
	printer.Success("Removed %d completed %s\n", removed, noun)
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.bind(ctx, args[0]); err != nil {
		return err
	}
	item, _, err := s.item(args[1])
	if err != nil {
		return err
	}

	if err := s.store.RemoveItem(ctx, item, ""); err != nil {
		return fmt.Errorf("failed to remove todo: %w", err)
	}
	printer.Warning("Removing single todos is not supported yet; '%s' was kept. Mark it done and run 'bento clear' instead.\n", item.Title)
	return nil
}
