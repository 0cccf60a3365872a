package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/gardenctl/internal/forward"
	"github.com/danmuck/gardenctl/internal/model"
	"github.com/spf13/cobra"
)

// routeFlags is what the route command needs to build and deliver one operation.
type routeFlags struct {
	opType    string
	target    string
	args      []string
	kwargs    []string
	modelType string
	modelFile string

	host      string
	port      int
	ssl       bool
	urlPrefix string
	certFile  string
	keyFile   string
	caFile    string
}

var routeOpts routeFlags

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Send one operation to a running garden and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		op, err := routeOpts.operation()
		if err != nil {
			return err
		}
		gw, err := forward.NewHTTPGateway(forward.HTTPConfig{
			Timeout:  forward.DefaultHTTPConfig().Timeout,
			CertFile: routeOpts.certFile,
			KeyFile:  routeOpts.keyFile,
			CAFile:   routeOpts.caFile,
		})
		if err != nil {
			return err
		}
		body, err := gw.Post(cmd.Context(), op, routeOpts.params())
		if err != nil {
			return err
		}
		return printResult(cmd, body)
	},
}

func init() {
	rootCmd.AddCommand(routeCmd)
	f := routeCmd.Flags()
	f.StringVarP(&routeOpts.opType, "type", "t", "", "operation type, e.g. REQUEST_CREATE")
	f.StringVar(&routeOpts.target, "target", "", "target garden name; resolved by the receiving garden when empty")
	f.StringArrayVar(&routeOpts.args, "arg", nil, "positional argument, repeatable")
	f.StringArrayVar(&routeOpts.kwargs, "kwarg", nil, "keyword argument as key=value, repeatable")
	f.StringVar(&routeOpts.modelType, "model-type", "", "model type in --model-file: Request, System or Garden")
	f.StringVar(&routeOpts.modelFile, "model-file", "", "JSON file holding the operation model")
	f.StringVar(&routeOpts.host, "host", "127.0.0.1", "garden host")
	f.IntVar(&routeOpts.port, "port", 2337, "garden port")
	f.BoolVar(&routeOpts.ssl, "ssl", false, "use https")
	f.StringVar(&routeOpts.urlPrefix, "url-prefix", "/", "garden url prefix")
	f.StringVar(&routeOpts.certFile, "cert", "", "client certificate for mutual tls")
	f.StringVar(&routeOpts.keyFile, "key", "", "client key for mutual tls")
	f.StringVar(&routeOpts.caFile, "ca", "", "ca bundle for the garden certificate")
	_ = routeCmd.MarkFlagRequired("type")
}

func (f routeFlags) params() model.ConnectionParams {
	return model.ConnectionParams{
		Host:      f.host,
		Port:      f.port,
		SSL:       f.ssl,
		URLPrefix: f.urlPrefix,
	}
}

// operation builds the operation through its wire form so the model is
// decoded the same way a receiving garden decodes it.
func (f routeFlags) operation() (*model.Operation, error) {
	opType := model.OperationType(strings.ToUpper(strings.TrimSpace(f.opType)))
	if !opType.Valid() {
		return nil, fmt.Errorf("unknown operation type %q", f.opType)
	}

	wire := map[string]any{
		"operation_type":     opType,
		"target_garden_name": strings.TrimSpace(f.target),
	}
	args := make([]any, 0, len(f.args))
	for _, a := range f.args {
		args = append(args, a)
	}
	wire["args"] = args

	kwargs := make(map[string]any, len(f.kwargs))
	for _, kv := range f.kwargs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("kwarg %q is not key=value", kv)
		}
		kwargs[strings.TrimSpace(key)] = value
	}
	wire["kwargs"] = kwargs

	if f.modelFile != "" {
		if f.modelType == "" {
			return nil, fmt.Errorf("--model-type is required with --model-file")
		}
		raw, err := os.ReadFile(f.modelFile)
		if err != nil {
			return nil, fmt.Errorf("read model file: %w", err)
		}
		wire["model_type"] = f.modelType
		wire["model"] = json.RawMessage(raw)
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return nil, err
	}
	var op model.Operation
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, err
	}
	return &op, nil
}

func printResult(cmd *cobra.Command, body []byte) error {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		_, err = cmd.OutOrStdout().Write(body)
		return err
	}
	pretty.WriteByte('\n')
	_, err := pretty.WriteTo(cmd.OutOrStdout())
	return err
}
