// Where: cmd/manager/main.go
// What: Lambda entrypoint.
// Why: Serve manager commands with configured dependencies.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
)

func main() {
	ctx := context.Background()
	handler, err := buildHandler(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Invoked with an argument: handle one payload locally instead of
	// starting the Lambda runtime. Useful against local stacks.
	if len(os.Args) > 1 {
		resp, _ := handler.Handle(ctx, json.RawMessage(os.Args[1]))
		out, err := json.Marshal(resp)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(string(out))
		return
	}

	lambda.Start(handler.Handle)
}
