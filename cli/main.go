package main

import (
	"os"

	"github.com/django-cloud/dcd/cli/cmd"
	"github.com/django-cloud/dcd/cli/crash"
)

func main() {
	defer func() {
		// Recover is a built-in function that regains control of a panicking goroutine.
		// In case our program panics, recover function will capture the value given to
		// panic function and resume normal execution (handling this error below).
		if r := recover(); r != nil {
			crash.HandleCrash(cmd.GetCmdCtxPtr(), r)
			os.Exit(1)
		}
	}()

	cmd.InitRoot()
	cmd.Execute()
}
