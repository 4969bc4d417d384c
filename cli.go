package guard

import "github.com/spf13/cobra"

type Executable func(cmd *cobra.Command, args []string) error

type Commands []Command

type Command struct {
	Run      Executable
	Use      string
	Args     cobra.PositionalArgs
	Long     string
	Short    string
	Flags    func(cmd *cobra.Command)
	Children Commands
}

func NewRootCommand(use, short string, commands Commands) *cobra.Command {
	rootCmd := &cobra.Command{Use: use, Short: short, SilenceUsage: true}
	bindCommands(commands, rootCmd)
	return rootCmd
}

func Execute(use, short string, commands Commands) error {
	return NewRootCommand(use, short, commands).Execute()
}

func bindCommands(commands Commands, root *cobra.Command) {
	for _, cmd := range commands {
		cobraCmd := &cobra.Command{
			Use:   cmd.Use,
			Short: cmd.Short,
			Long:  cmd.Long,
			RunE:  cmd.Run,
			Args:  cmd.Args,
		}
		if cmd.Flags != nil {
			cmd.Flags(cobraCmd)
		}
		root.AddCommand(cobraCmd)
		bindCommands(cmd.Children, cobraCmd)
	}
}
