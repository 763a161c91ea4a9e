package app

import "fmt"

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーとダッシュボードを提供する。引数なしの既定値。
	CommandServe Command = "serve"
	// CommandWorker は期限切れセッションのクリーンアップを定期実行する。
	CommandWorker Command = "worker"
	// CommandMigrate は未適用のマイグレーションを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はローカルの /health を叩いて終了コードで結果を返す。
	// シェルのないdistrolessイメージのHEALTHCHECK用。
	CommandHealthcheck Command = "healthcheck"
)

var commands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandWorker):      CommandWorker,
	string(CommandMigrate):     CommandMigrate,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand はコマンドライン引数の先頭からサブコマンドを解析する。
// 引数が空の場合はCommandServeを返す。未知のサブコマンドはエラーにする。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return "", fmt.Errorf("unknown command %q (want serve, worker, migrate or healthcheck)", args[0])
	}
	return cmd, nil
}
