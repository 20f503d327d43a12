// adduser 直接在数据库中创建用户，用于初始化第一个管理员。
//
//	adduser -user root -email root@example.com -role admin [-password xxx] [-config config.yaml]
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"expensehub/config"
	"expensehub/database"
	"expensehub/models"
	"expensehub/service"

	"golang.org/x/term"
	"gorm.io/gorm"
)

var openDB = func(configPath string) (*gorm.DB, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return database.Open(cfg)
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	username := fs.String("user", "", "Username")
	email := fs.String("email", "", "Email")
	role := fs.String("role", string(models.RoleAdmin), "Role: user, editor or admin")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	configPath := fs.String("config", "", "Config file (optional)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *username == "" || *email == "" {
		fmt.Fprintln(stdout, "Usage: adduser -user <username> -email <email> [-role admin] [-password <password>] [-config <file>]")
		fs.PrintDefaults()
		return errors.New("missing required flags: user, email")
	}
	if !models.Role(*role).Valid() {
		return fmt.Errorf("invalid role %q", *role)
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password cannot be empty")
	}

	db, err := openDB(*configPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close(db)

	user, err := service.NewUserService(db).Create(context.Background(), *username, *email, password, models.Role(*role))
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "User %s (%s) created with ID %d\n", user.Username, user.Role, user.ID)
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	// 非终端输入（管道、测试）
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
