package prompt

import (
	"strconv"
	"strings"
)

// Example is a question/statement pair embedded in every prompt.
type Example struct {
	Question string
	SQL      string
}

const header = `Ты — система аналитики видео. Преобразуй вопрос пользователя в ОДИН корректный SQL-запрос на PostgreSQL.`

const schema = `СХЕМА БАЗЫ ДАННЫХ:

Таблица "videos" (итоговая статистика по каждому видео):
- id (BIGINT) — идентификатор видео
- creator_id (BIGINT) — идентификатор креатора
- video_created_at (TIMESTAMP) — дата публикации видео
- views_count (INTEGER) — финальное количество просмотров
- likes_count (INTEGER) — финальное количество лайков
- comments_count (INTEGER) — финальное количество комментариев
- reports_count (INTEGER) — финальное количество жалоб

Таблица "video_snapshots" (почасовые замеры статистики):
- id (BIGSERIAL) — идентификатор снапшота
- video_id (BIGINT) — ссылка на видео
- views_count (INTEGER) — текущие просмотры на момент замера
- likes_count (INTEGER) — текущие лайки на момент замера
- comments_count (INTEGER) — текущие комментарии на момент замера
- reports_count (INTEGER) — текущие жалобы на момент замера
- delta_views_count (INTEGER) — прирост просмотров с прошлого замера
- delta_likes_count (INTEGER) — прирост лайков с прошлого замера
- delta_comments_count (INTEGER) — прирост комментариев с прошлого замера
- delta_reports_count (INTEGER) — прирост жалоб с прошлого замера
- created_at (TIMESTAMP) — время замера (раз в час)`

// Rules are numbered in order when rendered.
var rules = []string{
	"В ответе должен быть ТОЛЬКО один SQL-запрос без лишнего текста",
	"Запрос должен возвращать РОВНО ОДНО ЧИСЛО (через COUNT, SUM, AVG)",
	"Для фильтрации по датам используй: DATE(column) = 'ГГГГ-ММ-ДД' или BETWEEN",
	`"Сколько видео" → используй таблицу videos + COUNT(*)`,
	`"На сколько выросло/прирост" → используй таблицу video_snapshots + SUM(delta_*_count)`,
	`"Разные видео" → используй COUNT(DISTINCT video_id)`,
	"Даты в запросах уже нормализованы в формат ГГГГ-ММ-ДД",
}

var examples = []Example{
	{
		Question: "Сколько всего видео есть в системе?",
		SQL:      "SELECT COUNT(*) FROM videos;",
	},
	{
		Question: "Сколько видео у креатора с id 123 вышло с 2025-11-01 по 2025-11-05?",
		SQL:      "SELECT COUNT(*) FROM videos WHERE creator_id = 123 AND DATE(video_created_at) BETWEEN '2025-11-01' AND '2025-11-05';",
	},
	{
		Question: "Сколько видео набрало больше 100000 просмотров?",
		SQL:      "SELECT COUNT(*) FROM videos WHERE views_count > 100000;",
	},
	{
		Question: "На сколько просмотров выросли все видео 2025-11-28?",
		SQL:      "SELECT SUM(delta_views_count) FROM video_snapshots WHERE DATE(created_at) = '2025-11-28';",
	},
	{
		Question: "Сколько разных видео получали новые просмотры 2025-11-27?",
		SQL:      "SELECT COUNT(DISTINCT video_id) FROM video_snapshots WHERE DATE(created_at) = '2025-11-27' AND delta_views_count > 0;",
	},
}

// StatementMarker ends every prompt; the completion continues after it.
const StatementMarker = "SQL:"

// Build embeds the normalized question after the fixed schema, rules and
// examples.
func Build(normalizedQuery string) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")
	b.WriteString(schema)
	b.WriteString("\n\nПРАВИЛА ГЕНЕРАЦИИ ЗАПРОСА:\n")
	for i, rule := range rules {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(rule)
		b.WriteString("\n")
	}
	b.WriteString("\nПРИМЕРЫ:\n")
	for _, example := range examples {
		b.WriteString("\nВопрос: \"")
		b.WriteString(example.Question)
		b.WriteString("\"\n")
		b.WriteString(StatementMarker)
		b.WriteString(" ")
		b.WriteString(example.SQL)
		b.WriteString("\n")
	}
	b.WriteString("\nТеперь обработай этот вопрос:\n\nВопрос: ")
	b.WriteString(normalizedQuery)
	b.WriteString("\n")
	b.WriteString(StatementMarker)
	return b.String()
}

// FewShotExamples returns a copy of the examples embedded by Build.
func FewShotExamples() []Example {
	out := make([]Example, len(examples))
	copy(out, examples)
	return out
}
