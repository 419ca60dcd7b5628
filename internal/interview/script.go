package interview

// The interview script is fixed: one greeting, five questions in a set
// order, one closing remark. Answer i always pairs with Questions[i].

const (
	SetupInstructionMessage = "カメラの前に立ってください。あなたを確認できたらインタビューを始めます。"
	GreetingMessage         = "こんにちは！青春ソングを作るためのインタビューを始めましょう。各質問に一言で答えてください。"
	ClosingMessage          = "ありがとうございました。いただいた答えをもとに、あなたの青春ソングを作ります。少々お待ちください。"
	LyricsDoneMessage       = "歌詞の生成が完了しました。続いて曲を生成します。"
	SongDoneMessage         = "あなたの青春ソングが完成しました！"

	SongTitle = "青春ソング"
)

var Questions = []string{
	"あなたの青春時代を一言で表すと？",
	"その時期にあなたが最も夢中になっていたものは？",
	"青春時代の挫折や失敗を乗り越えた時の気持ちを一言で？",
	"その頃のあなたにとって最も大切だったものは？",
	"今、あの頃の自分に伝えたい言葉を一つ挙げるとしたら？",
}
